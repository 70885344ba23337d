package app

import (
	"html/template"
	"net/http"

	"identity-gate/internal/identity"
	"identity-gate/internal/profile"

	"github.com/gin-gonic/gin"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "home"}}<!doctype html>
<html><head><title>Home</title></head><body>
{{if .Signed}}<p>Signed in{{with .Name}} as {{.}}{{end}}.</p>
<a href="/dashboard">Dashboard</a>{{if .Admin}} | <a href="/admin">Admin</a>{{end}}
<form method="post" action="/auth/logout"><button>Sign out</button></form>
{{else}}<a href="/login">Sign in</a>{{end}}
</body></html>{{end}}

{{define "login"}}<!doctype html>
<html><head><title>Sign in</title></head><body>
{{range .Providers}}<p><a href="/oauth/login/{{.}}">Sign in with {{.}}</a></p>{{end}}
</body></html>{{end}}

{{define "dashboard"}}<!doctype html>
<html><head><title>Dashboard</title></head><body>
<h1>Dashboard</h1><p>{{.Name}}</p>
</body></html>{{end}}

{{define "admin"}}<!doctype html>
<html><head><title>Admin</title></head><body>
<h1>Admin</h1><p>{{.Name}}</p>
</body></html>{{end}}
`))

type pageData struct {
	Signed    bool
	Admin     bool
	Name      string
	Providers []string
}

func currentPage(c *gin.Context) pageData {
	snap := identity.SnapshotFromContext(c.Request.Context())
	d := pageData{Signed: snap.State() == identity.StateSignedIn}

	if p := snap.Profile(); p != nil {
		d.Name = p.DisplayName
		d.Admin = p.HasRole(profile.RoleAdmin)
	}
	if d.Name == "" {
		if s, ok := snap.Session(); ok {
			d.Name = s.Email
		}
	}
	return d
}

func homePage(c *gin.Context) {
	c.HTML(http.StatusOK, "home", currentPage(c))
}

func loginPage(providers []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "login", pageData{Providers: providers})
	}
}

func dashboardPage(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard", currentPage(c))
}

func adminPage(c *gin.Context) {
	c.HTML(http.StatusOK, "admin", currentPage(c))
}
