package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pysugar/unified-drive/internal/apperr"
	"github.com/pysugar/unified-drive/internal/auth/session"
	"github.com/pysugar/unified-drive/internal/db/models"
)

// maxJSONBody bounds JSON request bodies; file content never travels as JSON.
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}

// currentUser returns the user placed in the context by RequireUser.
func currentUser(r *http.Request) *models.User {
	user, _ := session.UserFromContext(r.Context())
	return user
}

// connectionParam prefers an explicit body value over the connectionId query parameter.
func connectionParam(r *http.Request, fromBody string) string {
	if v := strings.TrimSpace(fromBody); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get("connectionId"))
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

func viewUser(u *models.User) userView {
	return userView{ID: u.ID, Username: u.Username, FullName: u.FullName, Role: u.Role}
}
