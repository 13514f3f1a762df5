//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/hasad-erp/hasad/pkg/auth"
	"github.com/hasad-erp/hasad/pkg/model"
	gormstore "github.com/hasad-erp/hasad/pkg/server/store/gorm"
)

const stepPassword = "nakheel-2024"

// StepsContext holds state shared between the steps of one scenario
type StepsContext struct {
	tc           *TestContext
	client       *http.Client
	status       int
	responseBody []byte
	authToken    string
	tokens       map[string]string
	vars         map[string]string
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{
		tc:     tc,
		client: &http.Client{},
		tokens: map[string]string{},
		vars:   map[string]string{},
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, s.tc.Reset()
	})

	sc.Step(`^a Hasad server is running$`, s.aServerIsRunning)
	sc.Step(`^an? (viewer|user|manager|admin) "([^"]*)" exists$`, s.aUserExists)
	sc.Step(`^I am logged in as "([^"]*)"$`, s.iAmLoggedInAs)
	sc.Step(`^I am anonymous$`, s.iAmAnonymous)
	sc.Step(`^I remember the id of user "([^"]*)" as "([^"]*)"$`, s.iRememberUserID)

	sc.Step(`^I send a (GET|POST|PUT|PATCH|DELETE) request to "([^"]*)"$`, s.iSendRequest)
	sc.Step(`^I send a (POST|PUT|PATCH|DELETE) request to "([^"]*)" with body:$`, s.iSendRequestWithBody)
	sc.Step(`^I remember the response field "([^"]*)" as "([^"]*)"$`, s.iRememberField)

	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.theResponseFieldShouldBe)
	sc.Step(`^the response field "([^"]*)" should be (\d+)$`, s.theResponseFieldShouldBeNumber)
	sc.Step(`^the response should contain "([^"]*)"$`, s.theResponseShouldContain)
	sc.Step(`^the response should not contain "([^"]*)"$`, s.theResponseShouldNotContain)
	sc.Step(`^the response should be a list of (\d+) items?$`, s.theResponseShouldBeAList)
}

func (s *StepsContext) aServerIsRunning() error {
	return nil
}

func (s *StepsContext) aUserExists(role, username string) error {
	_, err := s.tc.Auth.CreateUser(auth.RegisterInput{
		Username: username,
		Email:    username + "@example.org",
		Password: stepPassword,
	}, model.Role(role), "")
	return err
}

func (s *StepsContext) iAmLoggedInAs(username string) error {
	if tok, ok := s.tokens[username]; ok {
		s.authToken = tok
		return nil
	}

	s.authToken = ""
	body := fmt.Sprintf(`{"login":%q,"password":%q}`, username, stepPassword)
	if err := s.send("POST", "/auth/login", body); err != nil {
		return err
	}
	if s.status != http.StatusOK {
		return fmt.Errorf("login as %s failed with %d: %s", username, s.status, s.responseBody)
	}
	var res auth.LoginResult
	if err := json.Unmarshal(s.responseBody, &res); err != nil {
		return err
	}
	if res.Tokens == nil {
		return fmt.Errorf("login as %s returned no tokens", username)
	}
	s.tokens[username] = res.Tokens.AccessToken
	s.authToken = res.Tokens.AccessToken
	return nil
}

func (s *StepsContext) iAmAnonymous() error {
	s.authToken = ""
	return nil
}

func (s *StepsContext) iRememberUserID(login, name string) error {
	u, err := gormstore.NewUserStore(s.tc.DB).GetUserByLogin(login)
	if err != nil {
		return fmt.Errorf("user %s: %w", login, err)
	}
	s.vars[name] = u.ID
	return nil
}

func (s *StepsContext) iSendRequest(method, path string) error {
	return s.send(method, path, "")
}

func (s *StepsContext) iSendRequestWithBody(method, path string, body *godog.DocString) error {
	return s.send(method, path, body.Content)
}

var varRef = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// expand replaces {{name}} with a remembered value
func (s *StepsContext) expand(text string) string {
	return varRef.ReplaceAllStringFunc(text, func(ref string) string {
		return s.vars[varRef.FindStringSubmatch(ref)[1]]
	})
}

func (s *StepsContext) send(method, path, body string) error {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(s.expand(body))
	}
	req, err := http.NewRequest(method, s.tc.ServerURL+s.expand(path), reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	s.status = resp.StatusCode
	s.responseBody, err = io.ReadAll(resp.Body)
	return err
}

// field walks a dotted path such as "debt.status" or "0.id" through the
// JSON response
func (s *StepsContext) field(path string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(s.responseBody, &v); err != nil {
		return nil, fmt.Errorf("response is not JSON: %s", s.responseBody)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found in %s", path, s.responseBody)
			}
			v = next
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %s", part, s.responseBody)
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("field %q not found in %s", path, s.responseBody)
		}
	}
	return v, nil
}

func (s *StepsContext) iRememberField(path, name string) error {
	v, err := s.field(path)
	if err != nil {
		return err
	}
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("field %q is not a string: %v", path, v)
	}
	s.vars[name] = str
	return nil
}

func (s *StepsContext) theResponseStatusShouldBe(code int) error {
	if s.status != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, s.status, s.responseBody)
	}
	return nil
}

func (s *StepsContext) theResponseFieldShouldBe(path, expected string) error {
	v, err := s.field(path)
	if err != nil {
		return err
	}
	expected = s.expand(expected)
	if fmt.Sprint(v) != expected {
		return fmt.Errorf("expected %s to be %q, got %v", path, expected, v)
	}
	return nil
}

func (s *StepsContext) theResponseFieldShouldBeNumber(path string, expected int) error {
	v, err := s.field(path)
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok || int(n) != expected {
		return fmt.Errorf("expected %s to be %d, got %v", path, expected, v)
	}
	return nil
}

func (s *StepsContext) theResponseShouldContain(text string) error {
	if !strings.Contains(string(s.responseBody), s.expand(text)) {
		return fmt.Errorf("expected response to contain %q: %s", text, s.responseBody)
	}
	return nil
}

func (s *StepsContext) theResponseShouldNotContain(text string) error {
	if strings.Contains(string(s.responseBody), s.expand(text)) {
		return fmt.Errorf("expected response not to contain %q: %s", text, s.responseBody)
	}
	return nil
}

func (s *StepsContext) theResponseShouldBeAList(n int) error {
	var items []json.RawMessage
	if err := json.Unmarshal(s.responseBody, &items); err != nil {
		return fmt.Errorf("response is not a list: %s", s.responseBody)
	}
	if len(items) != n {
		return fmt.Errorf("expected %d items, got %d: %s", n, len(items), s.responseBody)
	}
	return nil
}
