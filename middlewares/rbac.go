package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	mongodbadapter "github.com/casbin/mongodb-adapter/v3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

type policy struct {
	role     string
	resource string
	action   string
}

var defaultPolicies = []policy{
	{"admin", "debate", "cancel"},
	{"admin", "sweep", "run"},
	{"moderator", "definition", "moderate"},
}

// admins inherit everything moderators can do
var defaultGroupings = [][2]string{
	{"admin", "moderator"},
}

func defaultPolicyText() string {
	var b strings.Builder
	for _, p := range defaultPolicies {
		fmt.Fprintf(&b, "p, %s, %s, %s\n", p.role, p.resource, p.action)
	}
	for _, g := range defaultGroupings {
		fmt.Fprintf(&b, "g, %s, %s\n", g[0], g[1])
	}
	return b.String()
}

// Authorizer answers (role, resource, action) questions with casbin
type Authorizer struct {
	enforcer *casbin.Enforcer
	log      logrus.FieldLogger
}

func newAuthorizer(adapter persist.Adapter, log logrus.FieldLogger) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create Casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create Casbin enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	a := &Authorizer{enforcer: enforcer, log: log.WithField("component", "rbac")}
	if err := a.ensureDefaultPolicies(); err != nil {
		return nil, err
	}
	return a, nil
}

// NewDefaultAuthorizer serves the built-in policies from memory.
func NewDefaultAuthorizer(log logrus.FieldLogger) (*Authorizer, error) {
	return newAuthorizer(stringadapter.NewAdapter(defaultPolicyText()), log)
}

// NewMongoAuthorizer keeps policies in the casbin_rule collection of the database named
// in uri, seeding the defaults when they are missing.
func NewMongoAuthorizer(uri string, log logrus.FieldLogger) (*Authorizer, error) {
	adapter, err := mongodbadapter.NewAdapter(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to create Casbin adapter: %w", err)
	}
	return newAuthorizer(adapter, log)
}

// ensureDefaultPolicies is idempotent; existing rules are left alone.
func (a *Authorizer) ensureDefaultPolicies() error {
	for _, p := range defaultPolicies {
		exists, err := a.enforcer.HasPolicy(p.role, p.resource, p.action)
		if err != nil {
			return fmt.Errorf("failed to check policy: %w", err)
		}
		if exists {
			continue
		}
		if _, err := a.enforcer.AddPolicy(p.role, p.resource, p.action); err != nil {
			return fmt.Errorf("failed to add policy: %w", err)
		}
		a.log.Infof("Added default policy: %s can %s %s", p.role, p.action, p.resource)
	}
	for _, g := range defaultGroupings {
		exists, err := a.enforcer.HasGroupingPolicy(g[0], g[1])
		if err != nil {
			return fmt.Errorf("failed to check role grouping: %w", err)
		}
		if !exists {
			if _, err := a.enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
				return fmt.Errorf("failed to add role grouping: %w", err)
			}
		}
	}
	return nil
}

// Allowed reports whether role may perform action on resource.
func (a *Authorizer) Allowed(role, resource, action string) (bool, error) {
	return a.enforcer.Enforce(role, resource, action)
}

// RBACMiddleware rejects callers whose role lacks the permission. It runs after AuthMiddleware.
func (a *Authorizer) RBACMiddleware(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Role not found"})
			return
		}
		ok, err := a.Allowed(role, resource, action)
		if err != nil {
			a.log.WithError(err).Error("casbin enforce failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Permission check failed"})
			return
		}
		if !ok {
			a.log.WithFields(logrus.Fields{
				"role":     role,
				"resource": resource,
				"action":   action,
			}).Info("permission denied")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}
