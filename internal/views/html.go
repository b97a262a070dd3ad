package views

import (
	"fmt"
	"io"
	"strings"

	session "github.com/goliatone/go-auth-session"
	"github.com/microcosm-cc/bluemonday"
)

// HTML renders the web UI pages. Every value that comes from the backend is
// passed through bluemonday before it reaches the page.
type HTML struct {
	text  *bluemonday.Policy
	media *bluemonday.Policy
	csrf  string
}

// NewHTML creates the HTML renderer
func NewHTML() *HTML {
	media := bluemonday.NewPolicy()
	media.AllowStandardURLs()
	media.AllowRelativeURLs(true)
	media.AllowAttrs("src", "alt", "width", "height").OnElements("img")

	return &HTML{
		text:  bluemonday.StrictPolicy(),
		media: media,
	}
}

// WithCSRF returns a renderer that adds field, a hidden input, to every form
func (h *HTML) WithCSRF(field string) *HTML {
	cp := *h
	cp.csrf = field
	return &cp
}

// Clean escapes s for use in page text
func (h *HTML) Clean(s string) string {
	return h.text.Sanitize(s)
}

// Avatar returns an img tag for url, or an empty string when url is unsafe
func (h *HTML) Avatar(url, alt string) string {
	if url == "" {
		url = session.DefaultProfileImage
	}
	tag := fmt.Sprintf(`<img src="%s" alt="%s" width="48" height="48">`,
		strings.ReplaceAll(url, `"`, "&#34;"),
		h.Clean(alt),
	)
	out := h.media.Sanitize(tag)
	if !strings.Contains(out, "src=") {
		return ""
	}
	return out
}

// Page wraps body in the page layout
func (h *HTML) Page(w io.Writer, title, body string, flash string) {
	fmt.Fprintf(w, `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<main>
`, h.Clean(title))
	if flash != "" {
		fmt.Fprintf(w, "<p class=\"error\" role=\"alert\">%s</p>\n", h.Clean(flash))
	}
	fmt.Fprint(w, body)
	fmt.Fprint(w, "\n</main>\n</body>\n</html>\n")
}

// Dashboard renders the signed in home page
func (h *HTML) Dashboard(identity *session.Identity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>Welcome, %s</h1>\n", h.Clean(identity.Name))
	if avatar := h.Avatar(identity.ProfileImageURL, identity.Name); avatar != "" {
		b.WriteString(avatar + "\n")
	}
	fmt.Fprintf(&b, "<p>%s &middot; %s</p>\n", h.Clean(identity.Email), h.Clean(string(identity.Role)))
	b.WriteString("<nav><a href=\"/profile\">Profile</a>")
	if identity.IsAtLeast(session.RoleAdmin) {
		b.WriteString(" <a href=\"/admin/users\">Users</a>")
	}
	b.WriteString("</nav>\n")
	b.WriteString(h.signOutForm())
	return b.String()
}

// Profile renders the profile and password forms
func (h *HTML) Profile(identity *session.Identity) string {
	var b strings.Builder
	b.WriteString("<h1>Profile</h1>\n")
	fmt.Fprintf(&b, `%s
<label>Name <input name="name" value="%s" required></label>
<label>Image <input name="profile_image_url" value="%s"></label>
<button type="submit">Save</button>
</form>
%s
<label>Current password <input type="password" name="password" required></label>
<label>New password <input type="password" name="new_password" required></label>
<button type="submit">Change password</button>
</form>
`, h.form("/profile"), h.Clean(identity.Name), h.Clean(identity.ProfileImageURL), h.form("/profile/password"))
	return b.String()
}

// Users renders the admin user table
func (h *HTML) Users(users []session.Identity) string {
	var b strings.Builder
	b.WriteString("<h1>Users</h1>\n<table>\n<tr><th>Name</th><th>Email</th><th>Role</th></tr>\n")
	for _, u := range users {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			h.Clean(u.Name), h.Clean(u.Email), h.Clean(string(u.Role)))
	}
	b.WriteString("</table>\n")
	return b.String()
}

// Pending renders the approval interstitial
func (h *HTML) Pending(view session.PendingView) string {
	var b strings.Builder
	b.WriteString("<h1>Account pending approval</h1>\n")
	if view.Email != "" {
		fmt.Fprintf(&b, "<p>%s &lt;%s&gt;</p>\n", h.Clean(view.Name), h.Clean(view.Email))
	}
	fmt.Fprintf(&b, "<p>%s</p>\n", h.Clean(view.Message))
	b.WriteString(h.form("/auth/pending/check") + `<button type="submit">Check again</button></form>` + "\n")
	b.WriteString(h.signOutForm())
	return b.String()
}

// SignIn renders the sign-in form
func (h *HTML) SignIn(email string) string {
	return fmt.Sprintf(`<h1>Sign in</h1>
%s
<label>Email <input type="email" name="email" value="%s" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
<p><a href="/auth/signup">Create an account</a></p>
`, h.form("/auth/signin"), h.Clean(email))
}

// SignUp renders the sign-up form
func (h *HTML) SignUp(name, email string) string {
	return fmt.Sprintf(`<h1>Sign up</h1>
%s
<label>Name <input name="name" value="%s" required></label>
<label>Email <input type="email" name="email" value="%s" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign up</button>
</form>
<p><a href="/auth/signin">Already have an account?</a></p>
`, h.form("/auth/signup"), h.Clean(name), h.Clean(email))
}

// Loading renders the page shown while the session settles
func (h *HTML) Loading() string {
	return `<p aria-busy="true">Loading&hellip;</p>`
}

// form opens a post form to action
func (h *HTML) form(action string) string {
	return `<form method="post" action="` + action + `">` + h.csrf
}

func (h *HTML) signOutForm() string {
	return h.form("/auth/signout") + `<button type="submit">Sign out</button></form>` + "\n"
}
