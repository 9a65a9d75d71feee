// Package session answers "who is signed in" and decides which views the
// signed-in role may open. The API enforces access on its own; the gate
// only steers navigation.
package session

import (
	"context"
	"sort"

	"github.com/jwalitptl/hms/internal/model"
)

// Session is the result of a session probe.
type Session struct {
	Authenticated bool
	User          *model.User
}

// Prober asks the API for the current user.
type Prober interface {
	Me(ctx context.Context) (*model.User, error)
}

// Check probes the API. Any failure, including a network error, reads as
// signed out.
func Check(ctx context.Context, p Prober) Session {
	u, err := p.Me(ctx)
	if err != nil || u == nil {
		return Session{}
	}
	return Session{Authenticated: true, User: u}
}

// Decision is the outcome of a gate check.
type Decision int

const (
	Allowed Decision = iota
	RedirectLogin
	RedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case RedirectLogin:
		return "redirect-login"
	case RedirectUnauthorized:
		return "redirect-unauthorized"
	default:
		return "unknown"
	}
}

// Path is where a denied navigation is sent.
func (d Decision) Path() string {
	switch d {
	case RedirectLogin:
		return "/login"
	case RedirectUnauthorized:
		return "/unauthorized"
	default:
		return ""
	}
}

// View names a protected page.
type View string

const (
	ViewAdminDashboard     View = "admin"
	ViewReceptionDashboard View = "reception"
	ViewDoctorDashboard    View = "doctor"
	ViewLabDashboard       View = "lab"
	ViewXrayDashboard      View = "xray"
	ViewPharmacyDashboard  View = "pharmacy"
	ViewPatientDashboard   View = "patient"
	ViewProfile            View = "profile"
	ViewLabRecords         View = "lab-records"
	ViewXrayRecords        View = "xray-records"
	ViewWalkIns            View = "walk-ins"
	ViewUsers              View = "users"
)

// Views is the default role allow-list per view.
var Views = map[View][]model.Role{
	ViewAdminDashboard:     {model.RoleAdmin},
	ViewReceptionDashboard: {model.RoleReception},
	ViewDoctorDashboard:    {model.RoleDoctor},
	ViewLabDashboard:       {model.RoleLab},
	ViewXrayDashboard:      {model.RoleXray},
	ViewPharmacyDashboard:  {model.RolePharmacy},
	ViewPatientDashboard:   {model.RolePatient},
	ViewProfile:            model.Roles,
	ViewLabRecords:         {model.RoleAdmin, model.RoleDoctor, model.RoleLab},
	ViewXrayRecords:        {model.RoleAdmin, model.RoleDoctor, model.RoleXray},
	ViewWalkIns:            {model.RoleAdmin, model.RoleReception, model.RoleXray},
	ViewUsers:              {model.RoleAdmin},
}

// Gate checks sessions against per-view allow-lists.
type Gate struct {
	views map[View][]model.Role
}

// NewGate returns a gate over views; nil means Views.
func NewGate(views map[View][]model.Role) *Gate {
	if views == nil {
		views = Views
	}
	return &Gate{views: views}
}

// Allow decides whether s may open view. Views without an allow-list are
// closed to everyone.
func (g *Gate) Allow(s Session, view View) Decision {
	if !s.Authenticated || s.User == nil {
		return RedirectLogin
	}
	roles, ok := g.views[view]
	if !ok || !s.User.HasRole(roles...) {
		return RedirectUnauthorized
	}
	return Allowed
}

// Available lists the views role may open, sorted by name.
func (g *Gate) Available(role model.Role) []View {
	var out []View
	for view, roles := range g.views {
		for _, r := range roles {
			if r == role {
				out = append(out, view)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Home is the dashboard a role lands on after signing in.
func Home(role model.Role) View {
	switch role {
	case model.RoleAdmin:
		return ViewAdminDashboard
	case model.RoleReception:
		return ViewReceptionDashboard
	case model.RoleDoctor:
		return ViewDoctorDashboard
	case model.RoleLab:
		return ViewLabDashboard
	case model.RoleXray:
		return ViewXrayDashboard
	case model.RolePharmacy:
		return ViewPharmacyDashboard
	default:
		return ViewPatientDashboard
	}
}
