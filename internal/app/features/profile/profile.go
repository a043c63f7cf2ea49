// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"net/http"

	"github.com/excelanalytics/excelhub/internal/app/system/htmlsanitize"
	"github.com/excelanalytics/excelhub/internal/app/system/httpjson"
	"github.com/excelanalytics/excelhub/internal/app/system/limits"
	"github.com/excelanalytics/excelhub/internal/app/system/normalize"
	"github.com/excelanalytics/excelhub/internal/app/system/timeouts"
	"github.com/excelanalytics/excelhub/internal/domain/models"
	"go.uber.org/zap"
)

// ServeProfile returns the caller's profile. Activity and notifications
// have their own endpoints and are left out.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, ok := h.caller(w, r, func(id string) (models.UserProfile, error) {
		return h.Profiles.GetByID(ctx, id)
	})
	if !ok {
		return
	}
	p.ActivityLogs = nil
	p.Notifications = nil

	httpjson.OK(w, map[string]any{"success": true, "profile": p})
}

// updateRequest carries the editable fields. Absent fields keep their
// current value; an empty string clears one.
type updateRequest struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	Profession *string `json:"profession"`
	Address    *string `json:"address"`
	Bio        *string `json:"bio"`
	About      *string `json:"about"`
	Interests  *string `json:"interests"`
	PhotoURL   *string `json:"photoUrl"`
	Instagram  *string `json:"instagram"`
	LinkedIn   *string `json:"linkedin"`
	Facebook   *string `json:"facebook"`
	LeetCode   *string `json:"leetcode"`
}

// field applies one sanitized value and records its name when it changed.
type field struct {
	name     string
	in       *string
	dst      *string
	sanitize func(string) string
}

// HandleUpdateProfile applies the self-service fields. Free text is
// sanitized before it is stored; links that are not absolute http(s) URLs
// are rejected.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !httpjson.DecodeOrFail(w, r, &req, limits.MaxProfileBody) {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "update profile")
	defer cancel()

	p, ok := h.caller(w, r, func(id string) (models.UserProfile, error) {
		return h.Profiles.GetByID(ctx, id)
	})
	if !ok {
		return
	}

	d := p.Details
	fields := []field{
		{"phone", req.Phone, &d.Phone, htmlsanitize.Text},
		{"profession", req.Profession, &d.Profession, htmlsanitize.Text},
		{"address", req.Address, &d.Address, htmlsanitize.Text},
		{"interests", req.Interests, &d.Interests, htmlsanitize.Text},
		{"bio", req.Bio, &d.Bio, htmlsanitize.Rich},
		{"about", req.About, &d.About, htmlsanitize.Rich},
		{"photoUrl", req.PhotoURL, &d.PhotoURL, htmlsanitize.URL},
		{"instagram", req.Instagram, &d.Instagram, htmlsanitize.URL},
		{"linkedin", req.LinkedIn, &d.LinkedIn, htmlsanitize.URL},
		{"facebook", req.Facebook, &d.Facebook, htmlsanitize.URL},
		{"leetcode", req.LeetCode, &d.LeetCode, htmlsanitize.URL},
	}

	var changed []string
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		v := f.sanitize(*f.in)
		if v == "" && *f.in != "" && isLink(f.name) {
			httpjson.Invalid(w, f.name, "must be an absolute http or https URL")
			return
		}
		if v != *f.dst {
			*f.dst = v
			changed = append(changed, f.name)
		}
	}

	name := ""
	if req.Name != nil {
		name = normalize.Name(htmlsanitize.Text(*req.Name))
		if name == "" {
			httpjson.Invalid(w, "name", "name cannot be empty")
			return
		}
		if name != p.Name {
			changed = append(changed, "name")
		} else {
			name = ""
		}
	}

	if len(changed) == 0 {
		httpjson.OK(w, map[string]any{"success": true, "changed": []string{}})
		return
	}

	if err := h.Profiles.UpdateDetails(ctx, p.ID, name, d); err != nil {
		httpjson.Internal(w, h.Log, "update profile failed", err, zap.String("user_id", p.ID))
		return
	}
	h.Audit.ProfileUpdated(ctx, r, p.ID, changed)

	httpjson.OK(w, map[string]any{"success": true, "changed": changed, "details": d})
}

func isLink(name string) bool {
	switch name {
	case "photoUrl", "instagram", "linkedin", "facebook", "leetcode":
		return true
	}
	return false
}
