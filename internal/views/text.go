// Package views renders session screens for the terminal and the local web UI.
package views

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	session "github.com/goliatone/go-auth-session"
)

const timeLayout = "2006-01-02 15:04"

// Session prints the session status line and identity
func Session(w io.Writer, snap session.Snapshot) {
	fmt.Fprintf(w, "Status: %s\n", snap.Status)
	if snap.IsActive() {
		Identity(w, snap.Identity)
	} else if snap.Enrollment != nil {
		fmt.Fprintf(w, "Enrolled: %s <%s> (%s)\n", snap.Enrollment.Name, snap.Enrollment.Email, snap.Enrollment.Role)
	}
	if msg := snap.ErrorMessage(); msg != "" {
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
}

// Identity prints the dashboard view of an identity
func Identity(w io.Writer, identity *session.Identity) {
	if identity == nil {
		fmt.Fprintln(w, "Not signed in")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", identity.Name)
	fmt.Fprintf(tw, "Email:\t%s\n", identity.Email)
	fmt.Fprintf(tw, "Role:\t%s\n", identity.Role)
	fmt.Fprintf(tw, "ID:\t%s\n", identity.ID)
	if identity.ProfileImageURL != "" {
		fmt.Fprintf(tw, "Image:\t%s\n", identity.ProfileImageURL)
	}
	if t := identity.Created(); !t.IsZero() {
		fmt.Fprintf(tw, "Member since:\t%s\n", t.Format(timeLayout))
	}
	if t := identity.LastActive(); !t.IsZero() {
		fmt.Fprintf(tw, "Last active:\t%s\n", t.Format(timeLayout))
	}
	tw.Flush()
}

// Users prints the admin user table
func Users(w io.Writer, users []session.Identity) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, formatTime(u.Created()))
	}
	tw.Flush()
}

// Pending prints the approval interstitial
func Pending(w io.Writer, view session.PendingView) {
	fmt.Fprintln(w, "Account pending approval")
	if view.Name != "" || view.Email != "" {
		fmt.Fprintf(w, "%s <%s>\n", view.Name, view.Email)
	}
	fmt.Fprintln(w, view.Message)
	if !view.SignedIn {
		fmt.Fprintln(w, "Sign in once an administrator has approved your account.")
	}
}

// Decision prints where a guarded view would go
func Decision(w io.Writer, path string, decision session.Decision) {
	switch decision.Outcome {
	case session.OutcomeRedirect:
		fmt.Fprintf(w, "%s -> redirect to %s (%s)\n", path, decision.Location, decision.Reason)
	default:
		fmt.Fprintf(w, "%s -> %s (%s)\n", path, decision.Outcome, decision.Reason)
	}
}

// Token prints what can be read from a token without verifying it
func Token(w io.Writer, info session.TokenInfo, now time.Time) {
	if info.Opaque {
		fmt.Fprintln(w, "Token: opaque")
		return
	}
	parts := []string{"Token: jwt"}
	if info.Subject != "" {
		parts = append(parts, "sub="+info.Subject)
	}
	if !info.ExpiresAt.IsZero() {
		if info.LooksExpired(now) {
			parts = append(parts, "expired "+info.ExpiresAt.Format(timeLayout))
		} else {
			parts = append(parts, "expires in "+info.ExpiresIn(now).Round(time.Second).String())
		}
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}
