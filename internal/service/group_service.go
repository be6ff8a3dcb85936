package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// GroupService implements the Connect GroupService, the admin surface of
// the group directory.
type GroupService struct {
	store storage.GroupDirectory
}

// NewGroupService creates a new GroupService with the given directory backend.
func NewGroupService(store storage.GroupDirectory) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a new group. The caller joins the roster as an admin.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[models.Group], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
	)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group name is required"))
	}
	members, err := creatorAdmin(memberID, req.Msg.Members)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	budget, err := budgetFrom(req.Msg.Budget)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	group := &models.Group{Name: name, Members: members, Budget: budget}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Group created", "group_id", group.ID, "created_by", memberID)
	return connect.NewResponse(group), nil
}

// GetGroup returns a group to one of its members.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[models.Group], error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !group.HasMember(memberID) {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("%s is not a member of group %s", memberID, group.ID))
	}
	return connect.NewResponse(group), nil
}

// AddMembers appends members to the end of a group's roster.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[AddMembersRequest]) (*connect.Response[models.Group], error) {
	if _, err := s.adminGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	slog.Info("AddMembers request received", "group_id", req.Msg.GroupID, "members_count", len(req.Msg.Members))

	if len(req.Msg.Members) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("at least one member is required"))
	}
	if err := checkMembers(req.Msg.Members); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	for _, m := range req.Msg.Members {
		if err := s.store.AddGroupMember(ctx, req.Msg.GroupID, m); err != nil {
			slog.Error("AddMembers failed", "group_id", req.Msg.GroupID, "member_id", m.ID, "error", err)
			return nil, toConnectError(err)
		}
	}
	return s.reload(ctx, req.Msg.GroupID)
}

// RemoveMember drops a member from the roster. Their past expenses stay as
// recorded; the last admin cannot be removed.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[RemoveMemberRequest]) (*connect.Response[models.Group], error) {
	group, err := s.adminGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	slog.Info("RemoveMember request received", "group_id", req.Msg.GroupID, "member_id", req.Msg.MemberID)

	if group.IsAdmin(req.Msg.MemberID) && adminCount(group) == 1 {
		return nil, connect.NewError(connect.CodeFailedPrecondition,
			fmt.Errorf("%s is the last admin of group %s", req.Msg.MemberID, group.ID))
	}
	if err := s.store.RemoveGroupMember(ctx, req.Msg.GroupID, req.Msg.MemberID); err != nil {
		slog.Error("RemoveMember failed", "group_id", req.Msg.GroupID, "member_id", req.Msg.MemberID, "error", err)
		return nil, toConnectError(err)
	}
	return s.reload(ctx, req.Msg.GroupID)
}

// SetBudget sets or clears a group's budget.
func (s *GroupService) SetBudget(ctx context.Context, req *connect.Request[SetBudgetRequest]) (*connect.Response[models.Group], error) {
	if _, err := s.adminGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	budget, err := budgetFrom(req.Msg.Max)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := s.store.SetGroupBudget(ctx, req.Msg.GroupID, budget); err != nil {
		slog.Error("SetBudget failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}
	return s.reload(ctx, req.Msg.GroupID)
}

// adminGroup loads a group and checks the caller is one of its admins.
func (s *GroupService) adminGroup(ctx context.Context, groupID string) (*models.Group, error) {
	memberID, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if !group.IsAdmin(memberID) {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("%s is not an admin of group %s", memberID, groupID))
	}
	return group, nil
}

func (s *GroupService) reload(ctx context.Context, groupID string) (*connect.Response[models.Group], error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(group), nil
}

// creatorAdmin validates the requested roster and makes sure the creator is
// on it as an admin.
func creatorAdmin(creator string, members []models.Member) ([]models.Member, error) {
	if err := checkMembers(members); err != nil {
		return nil, err
	}
	out := make([]models.Member, 0, len(members)+1)
	found := false
	for _, m := range members {
		if m.ID == creator {
			m.Role = models.RoleAdmin
			found = true
		}
		if m.Role == "" {
			m.Role = models.RoleMember
		}
		out = append(out, m)
	}
	if !found {
		out = append([]models.Member{{ID: creator, DisplayName: creator, Role: models.RoleAdmin}}, out...)
	}
	return out, nil
}

func checkMembers(members []models.Member) error {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if strings.TrimSpace(m.ID) == "" {
			return errors.New("member id is required")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate member %s", m.ID)
		}
		seen[m.ID] = true
		switch m.Role {
		case "", models.RoleMember, models.RoleAdmin:
		default:
			return fmt.Errorf("unknown role %q for %s", m.Role, m.ID)
		}
	}
	return nil
}

func adminCount(group *models.Group) int {
	n := 0
	for _, m := range group.Members {
		if m.Role == models.RoleAdmin {
			n++
		}
	}
	return n
}
