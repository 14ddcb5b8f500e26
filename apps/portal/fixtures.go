package main

import "github.com/gramsetu/scheme-portal/pkg/model"

// Fixture identities and projects for memory mode, mirroring what the
// portal's user and project services would hold.
func demoUsers() []model.Identity {
	return []model.Identity{
		{ID: "gp1", Name: "Rampur Gram Panchayat", Role: model.RoleGramPanchayat},
		{ID: "gp2", Name: "Basoli Gram Panchayat", Role: model.RoleGramPanchayat},
		{ID: "pacc1", Name: "District PACC Office", Role: model.RolePACC},
		{ID: "clerk1", Name: "State Clerk", Role: "state_clerk"},
	}
}

func demoProjects() []model.Project {
	return []model.Project{
		{ID: "projX", Name: "Village Road Upgrade", Status: "submitted"},
		{ID: "projY", Name: "Community Well Repair", Status: "approved"},
	}
}
