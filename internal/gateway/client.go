package gateway

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"outreach/internal/observability"
)

const DefaultLanguage = "pt_BR"

// Template is a Meta-approved message format. Body parameters are
// positional; a header parameter is a single named substitution.
type Template struct {
	Name             string
	Language         string
	BodyParams       []string
	HeaderParamName  string
	HeaderParamValue string
}

// DeliveryResult is the outcome of one dispatch attempt. PermanentFailure
// means a blind retry is not expected to succeed (unapproved template,
// invalid number, credential without permission).
type DeliveryResult struct {
	Success          bool   `json:"success"`
	MessageID        string `json:"messageId,omitempty"`
	RemoteJID        string `json:"remoteJid,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	StatusCode       int    `json:"statusCode,omitempty"`
	PermanentFailure bool   `json:"isPermanentFailure,omitempty"`
}

type Client struct {
	http *resty.Client
	keys Credentials
}

func NewClient(baseURL string, keys Credentials, timeout time.Duration) *Client {
	base := strings.TrimSpace(baseURL)
	if base != "" && !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(base, "/")).
			SetTimeout(timeout),
		keys: keys,
	}
}

type templateParam struct {
	Type          string `json:"type"`
	Text          string `json:"text"`
	ParameterName string `json:"parameter_name,omitempty"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []templateParam `json:"parameters,omitempty"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   string              `json:"language"`
	Components []templateComponent `json:"components"`
}

type sendTemplateBody struct {
	Number   string          `json:"number"`
	Template templatePayload `json:"template"`
}

type sendTextBody struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int    `json:"delay"`
}

// envelope of a 2xx gateway response
type sendResponse struct {
	Key struct {
		ID        string `json:"id"`
		RemoteJid string `json:"remoteJid"`
	} `json:"key"`
}

// SendTemplate dispatches a templated message through the given instance.
// It never returns an error; every outcome is a DeliveryResult.
func (c *Client) SendTemplate(ctx context.Context, phone string, tpl Template, instance Instance) DeliveryResult {
	key, ok := c.credential(instance)
	if !ok {
		return configFailure(instance)
	}

	lang := tpl.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	var components []templateComponent
	if tpl.HeaderParamName != "" {
		components = append(components, templateComponent{
			Type: "header",
			Parameters: []templateParam{{
				Type:          "text",
				Text:          tpl.HeaderParamValue,
				ParameterName: tpl.HeaderParamName,
			}},
		})
	}
	if len(tpl.BodyParams) > 0 {
		params := make([]templateParam, 0, len(tpl.BodyParams))
		for _, v := range tpl.BodyParams {
			params = append(params, templateParam{Type: "text", Text: v})
		}
		components = append(components, templateComponent{Type: "body", Parameters: params})
	}
	if components == nil {
		// template with no variable body is valid
		components = []templateComponent{}
	}

	body := sendTemplateBody{
		Number: CanonicalizePhone(phone),
		Template: templatePayload{
			Name:       tpl.Name,
			Language:   lang,
			Components: components,
		},
	}
	return c.post(ctx, "/message/sendTemplate/"+string(instance), key, body, "template")
}

// SendText dispatches a plain-text (non-template) message, such as a
// promise reminder. delayMs is a UX pacing hint for the gateway.
func (c *Client) SendText(ctx context.Context, phone, text string, delayMs int, instance Instance) DeliveryResult {
	key, ok := c.credential(instance)
	if !ok {
		return configFailure(instance)
	}
	body := sendTextBody{
		Number: CanonicalizePhone(phone),
		Text:   text,
		Delay:  delayMs,
	}
	return c.post(ctx, "/message/sendText/"+string(instance), key, body, "text")
}

func (c *Client) post(ctx context.Context, path, apiKey string, body any, method string) DeliveryResult {
	start := time.Now()
	var out sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("apikey", apiKey).
		SetBody(body).
		SetResult(&out).
		Post(path)
	observability.GatewayLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.GatewaySend.WithLabelValues(method, "error", "0").Inc()
		return DeliveryResult{ErrorMessage: err.Error()}
	}

	status := resp.StatusCode()
	if resp.IsError() {
		observability.GatewaySend.WithLabelValues(method, "error", strconv.Itoa(status)).Inc()
		return DeliveryResult{
			ErrorMessage:     string(resp.Body()),
			StatusCode:       status,
			PermanentFailure: IsPermanentStatus(status),
		}
	}

	observability.GatewaySend.WithLabelValues(method, "ok", strconv.Itoa(status)).Inc()
	return DeliveryResult{
		Success:    true,
		MessageID:  out.Key.ID,
		RemoteJID:  out.Key.RemoteJid,
		StatusCode: status,
	}
}

func (c *Client) credential(instance Instance) (string, bool) {
	key, ok := c.keys[instance]
	return key, ok && key != ""
}

func configFailure(instance Instance) DeliveryResult {
	return DeliveryResult{
		ErrorMessage:     "no gateway credential configured for instance " + string(instance),
		PermanentFailure: true,
	}
}

// IsPermanentStatus classifies an HTTP status: 4xx means the template,
// number or credential is bad (403 notably), except request timeout and
// rate limiting which are worth retrying.
func IsPermanentStatus(status int) bool {
	if status == 408 || status == 429 {
		return false
	}
	return status >= 400 && status < 500
}
