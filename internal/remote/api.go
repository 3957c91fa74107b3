package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SignIn exchanges credentials for a bearer token.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var resp SignInResponse
	err := c.do(ctx, http.MethodPost, "/signin", false,
		SignInRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", fmt.Errorf("signing in: %w", describe(err))
	}
	if !resp.Success || resp.Token == "" {
		return "", errors.New("signing in: server returned no token")
	}
	return resp.Token, nil
}

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, name, email, password string) error {
	err := c.do(ctx, http.MethodPost, "/signup", false,
		SignUpRequest{Name: name, Email: email, Password: password}, nil)
	if err != nil {
		return fmt.Errorf("signing up: %w", describe(err))
	}
	return nil
}

// Changes fetches every row changed after since (epoch milliseconds).
func (c *Client) Changes(ctx context.Context, since int64) (*Changes, error) {
	path := "/sync?since=" + url.QueryEscape(strconv.FormatInt(since, 10))
	var changes Changes
	if err := c.do(ctx, http.MethodGet, path, true, nil, &changes); err != nil {
		return nil, err
	}
	return &changes, nil
}

// CreateList creates a task list and returns its remote id.
func (c *Client) CreateList(ctx context.Context, list ListPayload) (string, error) {
	return c.write(ctx, http.MethodPost, "/task_lists", list.ID, list)
}

// UpdateList updates a task list and returns its remote id.
func (c *Client) UpdateList(ctx context.Context, list ListPayload) (string, error) {
	return c.write(ctx, http.MethodPut, "/task_lists", list.ID, list)
}

// CreateTask creates a task and returns its remote id.
func (c *Client) CreateTask(ctx context.Context, task TaskPayload) (string, error) {
	return c.write(ctx, http.MethodPost, "/tasks", task.ID, task)
}

// UpdateTask updates a task and returns its remote id.
func (c *Client) UpdateTask(ctx context.Context, task TaskPayload) (string, error) {
	return c.write(ctx, http.MethodPut, "/tasks", task.ID, task)
}

// CreateSubtask creates a subtask and returns its remote id.
func (c *Client) CreateSubtask(ctx context.Context, subtask SubtaskPayload) (string, error) {
	return c.write(ctx, http.MethodPost, "/subtasks", subtask.ID, subtask)
}

// UpdateSubtask updates a subtask and returns its remote id.
func (c *Client) UpdateSubtask(ctx context.Context, subtask SubtaskPayload) (string, error) {
	return c.write(ctx, http.MethodPut, "/subtasks", subtask.ID, subtask)
}

// Delete removes the row with the given remote id, whatever its table.
func (c *Client) Delete(ctx context.Context, serverID string) error {
	return c.do(ctx, http.MethodDelete, "/delete/"+url.PathEscape(serverID), true, nil, nil)
}

// write sends a create or update. A reply without an id means the server
// kept the id it was sent.
func (c *Client) write(
	ctx context.Context,
	method, path, sentID string,
	body interface{},
) (string, error) {
	var resp WriteResponse
	if err := c.do(ctx, method, path, true, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		c.log.Warnw("Server reply carried no id, keeping the sent id",
			"method", method, "path", path, "id", sentID)
		return sentID, nil
	}
	return string(resp.ID), nil
}

// describe replaces a raw status error body with the server's message when
// the body is the usual {"error": ...} object.
func describe(err error) error {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	var body errorResponse
	if jsonErr := json.Unmarshal([]byte(statusErr.Body), &body); jsonErr != nil || body.Error == "" {
		return err
	}
	return &StatusError{
		Method:     statusErr.Method,
		Path:       statusErr.Path,
		StatusCode: statusErr.StatusCode,
		Body:       body.Error,
	}
}
