package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/skridlevsky/membership-tracker/internal/roster"
	"go.uber.org/zap"
)

// DefaultBaseURL is the production REST endpoint of the platform
const DefaultBaseURL = "https://repo-prod.prod.sagebase.org/repo/v1"

var _ roster.TeamSource = (*Session)(nil)

// membersPageSize is the largest page the team member endpoint serves
const membersPageSize = 50

// Session is an authenticated connection to the platform.
// Construct one per run and pass it to whatever needs team data.
type Session struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *TeamCache
	log        *zap.Logger

	mu      sync.Mutex
	profile *UserProfile
}

// NewSession creates a session against baseURL authenticated by token.
// cache may be nil.
func NewSession(baseURL, token string, cache *TeamCache, log *zap.Logger) *Session {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		log:   log,
	}
}

// UserProfile is the platform identity behind the session token
type UserProfile struct {
	OwnerID   string  `json:"ownerId"`
	UserName  string  `json:"userName"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// Login verifies the token by fetching the caller's own profile.
// The profile is remembered; later calls return it without a request.
func (s *Session) Login(ctx context.Context) (*UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile != nil {
		return s.profile, nil
	}
	if s.token == "" {
		return nil, fmt.Errorf("no auth token configured: %w", roster.ErrAuth)
	}

	var profile UserProfile
	if err := s.getJSON(ctx, "/userProfile", &profile); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	s.profile = &profile
	s.log.Info("Logged in to platform", zap.String("user", profile.UserName))
	return s.profile, nil
}

// doRequest makes an authenticated request to the platform API
func (s *Session) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "membership-tracker")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// getJSON issues a GET and decodes a 200 response into target.
// Error statuses map to the roster error kinds.
func (s *Session) getJSON(ctx context.Context, path string, target interface{}) error {
	resp, err := s.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError reads an error body and classifies the status.
// 401 is an authentication failure; 403 and 404 mean the resource does not
// exist or is not visible to this session.
func statusError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Reason string `json:"reason"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
		msg = apiErr.Reason
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %s: %w", path, msg, roster.ErrAuth)
	case http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%s: %s: %w", path, msg, roster.ErrLookup)
	default:
		return fmt.Errorf("platform API error %d on %s: %s", resp.StatusCode, path, msg)
	}
}

// GetTeam fetches a team by id
func (s *Session) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	if s.cache != nil {
		if team, found := s.cache.Get(teamID); found {
			return team, nil
		}
	}

	var team Team
	if err := s.getJSON(ctx, "/team/"+url.PathEscape(teamID), &team); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(&team)
	}
	return &team, nil
}

// TeamMember is one entry of a team's member list
type TeamMember struct {
	TeamID  string `json:"teamId"`
	IsAdmin bool   `json:"isAdmin"`
	Member  struct {
		OwnerID      string  `json:"ownerId"`
		FirstName    *string `json:"firstName"`
		LastName     *string `json:"lastName"`
		UserName     string  `json:"userName"`
		IsIndividual bool    `json:"isIndividual"`
	} `json:"member"`
}

type teamMembersPage struct {
	TotalNumberOfResults int          `json:"totalNumberOfResults"`
	Results              []TeamMember `json:"results"`
}

// GetTeamMembers fetches every member of a team, following offset pagination
func (s *Session) GetTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	all := []TeamMember{}
	offset := 0

	for {
		path := fmt.Sprintf("/teamMembers/%s?offset=%d&limit=%d", url.PathEscape(teamID), offset, membersPageSize)

		var page teamMembersPage
		if err := s.getJSON(ctx, path, &page); err != nil {
			return nil, err
		}

		all = append(all, page.Results...)
		offset += len(page.Results)

		if len(page.Results) == 0 || offset >= page.TotalNumberOfResults {
			break
		}
	}

	return all, nil
}

// TeamName returns the display name of a team
func (s *Session) TeamName(ctx context.Context, teamID string) (string, error) {
	team, err := s.GetTeam(ctx, teamID)
	if err != nil {
		return "", err
	}
	return team.Name, nil
}

// TeamMembers returns a team's members as roster profiles
func (s *Session) TeamMembers(ctx context.Context, teamID string) ([]roster.Profile, error) {
	members, err := s.GetTeamMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	profiles := make([]roster.Profile, len(members))
	for i, m := range members {
		profiles[i] = roster.Profile{
			OwnerID:   m.Member.OwnerID,
			FirstName: m.Member.FirstName,
			LastName:  m.Member.LastName,
			UserName:  m.Member.UserName,
		}
	}
	return profiles, nil
}
