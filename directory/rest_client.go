// directory/rest_client.go
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dev-mohitbeniwal/dirsync/model"
)

// RESTClient talks to the directory service's admin API over HTTP. Every
// call carries the bearer token; the service's own error body is surfaced
// as an *Error so callers can distinguish absence from failure.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = &RESTClient{}

func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *RESTClient) RetrieveAllUsers(ctx context.Context) ([]*model.DirectoryUser, error) {
	var users []*model.DirectoryUser
	if err := c.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *RESTClient) RetrieveAllGroups(ctx context.Context) ([]*model.DirectoryGroup, error) {
	var groups []*model.DirectoryGroup
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *RESTClient) RetrieveUser(ctx context.Context, userKey string) (*model.DirectoryUser, error) {
	user := &model.DirectoryUser{}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userKey), nil, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *RESTClient) RetrieveGroup(ctx context.Context, groupKey string) (*model.DirectoryGroup, error) {
	group := &model.DirectoryGroup{}
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupKey), nil, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (c *RESTClient) AddUser(ctx context.Context, user *model.DirectoryUser) (*model.DirectoryUser, error) {
	created := &model.DirectoryUser{}
	if err := c.do(ctx, http.MethodPost, "/users", user, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *RESTClient) AddGroup(ctx context.Context, group *model.DirectoryGroup) (*model.DirectoryGroup, error) {
	created := &model.DirectoryGroup{}
	if err := c.do(ctx, http.MethodPost, "/groups", group, created); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *RESTClient) UpdateGroup(ctx context.Context, groupKey string, group *model.DirectoryGroup) (*model.DirectoryGroup, error) {
	updated := &model.DirectoryGroup{}
	if err := c.do(ctx, http.MethodPut, "/groups/"+url.PathEscape(groupKey), group, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *RESTClient) RemoveGroup(ctx context.Context, groupKey string) error {
	return c.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(groupKey), nil, nil)
}

func (c *RESTClient) AddGroupMember(ctx context.Context, groupKey string, member *model.DirectoryMember) error {
	return c.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupKey)+"/members", member, nil)
}

func (c *RESTClient) RemoveGroupMember(ctx context.Context, groupKey, userKey string) error {
	path := "/groups/" + url.PathEscape(groupKey) + "/members/" + url.PathEscape(userKey)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *RESTClient) RetrieveGroupMembers(ctx context.Context, groupKey string) ([]*model.DirectoryMember, error) {
	var members []*model.DirectoryMember
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupKey)+"/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *RESTClient) RetrieveGroupSettings(ctx context.Context, groupKey string) (*model.GroupSettings, error) {
	settings := &model.GroupSettings{}
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupKey)+"/settings", nil, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (c *RESTClient) UpdateGroupSettings(ctx context.Context, groupKey string, settings *model.GroupSettings) (*model.GroupSettings, error) {
	updated := &model.GroupSettings{}
	if err := c.do(ctx, http.MethodPut, "/groups/"+url.PathEscape(groupKey)+"/settings", settings, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.serviceError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	return nil
}

func (c *RESTClient) serviceError(resp *http.Response) error {
	serviceErr := &Error{StatusCode: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
		serviceErr.Message = body.Message
		if serviceErr.Message == "" {
			serviceErr.Message = body.Error
		}
	}
	if serviceErr.Message == "" {
		serviceErr.Message = http.StatusText(resp.StatusCode)
	}
	return serviceErr
}
