// Package domain contains shared domain types used across entity sub-packages.
// Entity-specific types live in sub-packages (domain/workflow, domain/template).
// This root package holds sentinel errors and the error taxonomy shared by
// every layer: validation, persistence and consistency-risk failures.
package domain
