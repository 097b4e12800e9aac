// Package models provides GORM-based models with a Django ORM-like
// interface for the task-management hierarchy: Account → Workspace →
// Space → Folder → List → Task, plus per-level membership and
// permission tables.
//
// Entities are soft-deleted (is_active / is_deleted flags) and never
// hard-deleted; sibling-order accounting and listing queries always
// filter on the active flag. Structural mutation goes through the
// authz/ordering/lifecycle packages — managers here are the persistence
// surface, not the rule layer.
package models
