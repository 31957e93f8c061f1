package backlog

import (
	"fmt"

	"github.com/jrsteele09/backlog-broker/internal/utils"
	"github.com/jrsteele09/backlog-broker/users"
)

// Project is a tracker project as returned to the browser.
type Project struct {
	ID         int64  `json:"id"`
	ProjectKey string `json:"projectKey"`
	Name       string `json:"name"`
}

// IssueSummary is one search result.
type IssueSummary struct {
	IssueKey  string `json:"issueKey"`
	Summary   string `json:"summary"`
	UpdatedAt string `json:"updatedAt"`
}

// IssueDetail is a single issue with its raw description.
type IssueDetail struct {
	IssueKey    string `json:"issueKey"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	UpdatedAt   string `json:"updatedAt"`
}

// Upstream payloads. Pointer fields distinguish absent from empty so that
// required fields can be checked at the boundary.

type apiUser struct {
	ID     *int64  `json:"id"`
	UserID *string `json:"userId"`
	Name   *string `json:"name"`
}

func (u apiUser) toUser() (users.User, error) {
	if u.ID == nil {
		return users.User{}, fmt.Errorf("user: missing id")
	}
	user := users.User{
		ID:     utils.Value(u.ID),
		UserID: utils.Value(u.UserID),
		Name:   utils.Value(u.Name),
	}
	if err := user.Validate(); err != nil {
		return users.User{}, fmt.Errorf("user: %w", err)
	}
	return user, nil
}

type apiProject struct {
	ID         *int64  `json:"id"`
	ProjectKey *string `json:"projectKey"`
	Name       *string `json:"name"`
}

func (p apiProject) toProject() (Project, error) {
	if p.ID == nil || p.ProjectKey == nil || p.Name == nil {
		return Project{}, fmt.Errorf("project: missing id, projectKey or name")
	}
	return Project{ID: *p.ID, ProjectKey: *p.ProjectKey, Name: *p.Name}, nil
}

type apiIssue struct {
	IssueKey    *string `json:"issueKey"`
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Updated     *string `json:"updated"`
}

func (i apiIssue) validate() error {
	if i.IssueKey == nil || *i.IssueKey == "" {
		return fmt.Errorf("issue: missing issueKey")
	}
	if i.Summary == nil {
		return fmt.Errorf("issue %s: missing summary", *i.IssueKey)
	}
	if i.Updated == nil {
		return fmt.Errorf("issue %s: missing updated", *i.IssueKey)
	}
	return nil
}

func (i apiIssue) toSummary() (IssueSummary, error) {
	if err := i.validate(); err != nil {
		return IssueSummary{}, err
	}
	return IssueSummary{IssueKey: *i.IssueKey, Summary: *i.Summary, UpdatedAt: *i.Updated}, nil
}

// toDetail treats a null description as empty.
func (i apiIssue) toDetail() (IssueDetail, error) {
	if err := i.validate(); err != nil {
		return IssueDetail{}, err
	}
	return IssueDetail{
		IssueKey:    *i.IssueKey,
		Summary:     *i.Summary,
		Description: utils.Value(i.Description),
		UpdatedAt:   *i.Updated,
	}, nil
}
