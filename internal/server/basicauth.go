package server

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/alertbridge/relay/internal/ruleset"
)

// basicUser is one resolved admin credential: a username paired with
// its plaintext password, already pulled out of the environment.
type basicUser struct {
	username string
	password string
}

// resolveBasicUsers mirrors the Python admin surface's fallback order
// (original_source/app/basic_auth.py _get_local_users): prefer
// RuleSet.auth.basic.users (each password resolved from its
// password_env), and only when none of those resolve, fall back to a
// single BASIC_AUTH_USER/BASIC_AUTH_PASSWORD pair.
func resolveBasicUsers(rs *ruleset.RuleSet, envUser, envPassword string) []basicUser {
	var users []basicUser
	if rs != nil && rs.Auth != nil && rs.Auth.Basic != nil {
		for _, u := range rs.Auth.Basic.Users {
			if pwd, ok := os.LookupEnv(u.PasswordEnv); ok {
				users = append(users, basicUser{username: u.Username, password: pwd})
			}
		}
	}
	if len(users) > 0 {
		return users
	}
	if envUser != "" && envPassword != "" {
		return []basicUser{{username: envUser, password: envPassword}}
	}
	return nil
}

// requireBasicAuth wraps an admin handler with HTTP Basic Auth. When no
// local users resolve at all (neither rule-document users nor the
// env-var fallback), the admin surface is left open, matching the
// original's "default: off" posture.
func (s *Server) requireBasicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := s.store.GetRules()
		var users []basicUser
		if err == nil {
			users = resolveBasicUsers(rs, s.basicAuthUser, s.basicAuthPassword)
		} else {
			users = resolveBasicUsers(nil, s.basicAuthUser, s.basicAuthPassword)
		}
		if len(users) == 0 {
			next(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || !authorized(users, username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="alertbridge"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func authorized(users []basicUser, username, password string) bool {
	for _, u := range users {
		if u.username == username && subtle.ConstantTimeCompare([]byte(u.password), []byte(password)) == 1 {
			return true
		}
	}
	return false
}
