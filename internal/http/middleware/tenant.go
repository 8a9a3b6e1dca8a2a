package middleware

import (
	"net/http"
	"strings"

	"github.com/anatoliahealth/medtour-crm/internal/tenancy"
)

// OrgHeader is the header public clients use to address a clinic.
const OrgHeader = "X-Org-ID"

// RequireOrg resolves the clinic from the request header into the tenancy
// context. Requests without an org are rejected before any handler runs.
func RequireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(OrgHeader))
		if orgID == "" {
			http.Error(w, "missing "+OrgHeader+" header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithOrgID(r.Context(), orgID)))
	})
}
