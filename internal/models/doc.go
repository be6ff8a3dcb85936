// Package models defines the core domain models for the trip ledger.
//
// # Ledger Models
//
// The following models are persisted by the ledger:
//   - Expense: A shared expense paid by one member and split among participants
//   - SplitEntry: One participant's share of an expense plus its settlement state
//
// # Directory Models
//
// Groups and members are owned by the group directory. The ledger only reads
// them to check membership, roles and budgets:
//   - Group: A travel group with an ordered member roster and optional budget
//   - Member: A group member with an optional payment handle
//
// # Derived Values
//
// Balances and settlement suggestions are never persisted. They are
// recomputed from the current expense set by the calculator package on
// every read.
//
// # Money
//
// All amounts are decimal.Decimal values rounded to two places. The ledger
// works in a single currency; FormatMoney renders amounts for messages and
// exports.
package models
