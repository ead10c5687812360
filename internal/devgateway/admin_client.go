package devgateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"gatelink/internal/protocol/wire"
)

// AdminClient drives a running dev gateway's /admin routes.
type AdminClient struct {
	Base string
	HTTP *http.Client
}

// NewAdminClient returns a client for the gateway at base, e.g.
// "http://127.0.0.1:18789".
func NewAdminClient(base string) *AdminClient {
	return &AdminClient{Base: base, HTTP: http.DefaultClient}
}

// Drop closes every client connection and returns how many there were.
func (c *AdminClient) Drop() (int, error) {
	var out CountResponse
	if err := c.post("/admin/drop", struct{}{}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Inject broadcasts an event to every authenticated connection.
func (c *AdminClient) Inject(event string, payload any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	var out CountResponse
	if err := c.post("/admin/events", InjectRequest{Event: event, Payload: raw}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// PushTokens returns the push registrations the gateway has received.
func (c *AdminClient) PushTokens() ([]PushRegistration, error) {
	var out []PushRegistration
	return out, c.getJSON("/admin/push-tokens", &out)
}

// History returns the stored messages of a session, newest limit only when
// limit > 0.
func (c *AdminClient) History(sessionKey string, limit int) ([]wire.ChatMessage, error) {
	path := "/admin/sessions/" + url.PathEscape(sessionKey) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []wire.ChatMessage
	return out, c.getJSON(path, &out)
}

func (c *AdminClient) post(path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("devgateway post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *AdminClient) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("devgateway get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
