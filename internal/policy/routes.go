package policy

import "github.com/mbathio/university-management/internal/models"

// DocumentCreator names the predicate that checks a document's creator.
const DocumentCreator = "document.creator"

// DefaultRules is the access table for the API. Order matters.
func DefaultRules() []Rule {
	return []Rule{
		R("GET", "/api/healthz", Public()),
		R("POST", "/api/auth/login", Public()),
		R("POST", "/api/auth/register", Public()),
		R("POST", "/api/auth/refresh", Public()),
		R("GET", "/api/auth/validate", Authenticated()),
		R("POST", "/api/auth/logout", Authenticated()),

		R("PUT", "/api/users/:id/role", AnyRole(models.RoleAdmin)),

		R("GET", "/api/documents/types", Authenticated()),
		R("GET", "/api/documents/download/:id", Authenticated()),
		R("GET", "/api/documents/files/**", Authenticated()),
		R("POST", "/api/documents", AnyRole(
			models.RoleAdmin, models.RoleTeacher, models.RoleFormationManager, models.RoleAdministration,
		)),
		R("PUT", "/api/documents/:id", Owner(DocumentCreator, "id", models.RoleAdmin)),
		R("DELETE", "/api/documents/:id", Owner(DocumentCreator, "id", models.RoleAdmin)),
		R("GET", "/api/documents", Authenticated()),
		R("GET", "/api/documents/:id", Authenticated()),

		R("*", "/api/admin/**", AnyRole(models.RoleAdmin)),
		R("*", "/api/teacher/**", AnyRole(models.RoleAdmin, models.RoleTeacher, models.RoleFormationManager)),
		R("*", "/api/student/**", AnyRole(models.RoleAdmin, models.RoleStudent)),
	}
}

// Default builds the table from DefaultRules.
func Default() *Table {
	t, err := NewTable(DefaultRules()...)
	if err != nil {
		panic(err)
	}
	return t
}
