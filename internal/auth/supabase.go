package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/adotb/adotb-go/internal/apperrors"
)

const supabaseTimeout = 15 * time.Second

// Table names in the Supabase project.
const (
	adminUsersTable     = "adminUsers"
	userAttributesTable = "userAttributes"
)

// SupabaseAuth implements Authenticator against a Supabase project, using
// the GoTrue REST endpoint for token verification and PostgREST for the
// role and entitlement tables.
type SupabaseAuth struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// SupabaseConfig holds the project URL and service key.
type SupabaseConfig struct {
	// URL is the project base URL (https://<project>.supabase.co).
	URL string
	// APIKey is the service role key used for table reads and as the
	// GoTrue apikey header.
	APIKey string
}

// NewSupabaseAuth validates the config and returns a ready client.
func NewSupabaseAuth(cfg *SupabaseConfig) (*SupabaseAuth, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, apperrors.Malformed("supabase auth requires SUPABASE_URL and SUPABASE_KEY")
	}
	return &SupabaseAuth{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: supabaseTimeout},
	}, nil
}

// CheckToken asks GoTrue who the token belongs to.
func (s *SupabaseAuth) CheckToken(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return "", apperrors.Upstream("could not verify token", fmt.Errorf("auth: build request: %w", err))
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.Upstream("could not verify token", fmt.Errorf("auth: get user: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apperrors.AccessDenied("Unauthorized access. Invalid token.")
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperrors.Upstream("could not verify token",
			fmt.Errorf("auth: get user: status %d: %s", resp.StatusCode, raw))
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil || user.ID == "" {
		return "", apperrors.Upstream("could not verify token", fmt.Errorf("auth: decode user: %w", err))
	}
	return user.ID, nil
}

// CheckRole reports whether the user appears in the role table. Only the
// admin role is modelled.
func (s *SupabaseAuth) CheckRole(ctx context.Context, userID, role string) (bool, error) {
	if role != "admin" {
		return false, apperrors.Unsupported(fmt.Sprintf("role %q is not supported", role))
	}

	var rows []struct {
		UserID string `json:"user_id"`
	}
	query := url.Values{
		"select":  {"user_id"},
		"user_id": {"eq." + userID},
	}
	if err := s.selectRows(ctx, adminUsersTable, query, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// AccessibleLabels reads the user-type mapping and flattens the source
// labels it grants.
func (s *SupabaseAuth) AccessibleLabels(ctx context.Context, userID string) ([]string, error) {
	var rows []struct {
		UserTypes struct {
			Sources []string `json:"sources"`
		} `json:"userTypes"`
	}
	query := url.Values{
		"select":  {`user_id,userTypes(user_type,sources)`},
		"user_id": {"eq." + userID},
	}
	if err := s.selectRows(ctx, userAttributesTable, query, &rows); err != nil {
		return nil, err
	}

	var labels []string
	for _, row := range rows {
		labels = append(labels, row.UserTypes.Sources...)
	}
	return labels, nil
}

// selectRows runs a PostgREST select against one table.
func (s *SupabaseAuth) selectRows(ctx context.Context, table string, query url.Values, out any) error {
	u := fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, url.PathEscape(table), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return apperrors.Upstream("could not query auth tables", fmt.Errorf("auth: build request: %w", err))
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Upstream("could not query auth tables", fmt.Errorf("auth: select %s: %w", table, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperrors.Upstream("could not query auth tables",
			fmt.Errorf("auth: select %s: status %d: %s", table, resp.StatusCode, raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Upstream("could not query auth tables", fmt.Errorf("auth: decode %s: %w", table, err))
	}
	return nil
}
