// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ccos/internal/apierr"
	"ccos/internal/httpapi"
)

// fetchParallel bounds concurrent message fetches.
const fetchParallel = 5

type Profile struct {
	EmailAddress  string `json:"email"`
	MessagesTotal int    `json:"messages_total"`
	ThreadsTotal  int    `json:"threads_total"`
}

// Message is a parsed Gmail message.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	IsHTML   bool   `json:"is_html"`
}

type Sent struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

type part struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []part `json:"parts"`
}

type rawMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  part   `json:"payload"`
}

// UnreadQuery builds the search for unread mail.
func UnreadQuery(sender, subject string) string {
	q := "is:unread"
	if sender != "" {
		q += " from:" + sender
	}
	if subject != "" {
		q += " subject:" + subject
	}
	return q
}

// SinceQuery restricts extra to mail received in the last days.
func SinceQuery(now time.Time, days int, extra string) string {
	q := "after:" + now.AddDate(0, 0, -days).Format("2006/01/02")
	if extra != "" {
		q += " " + extra
	}
	return q
}

// SubjectAny matches a subject containing any of the keywords.
func SubjectAny(keywords []string) string {
	terms := make([]string, len(keywords))
	for i, k := range keywords {
		terms[i] = "subject:" + k
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

func (c *Client) request(ctx context.Context, req httpapi.Request, out any) error {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return err
	}
	req.BearerToken = token
	return c.http.DoJSON(ctx, req, out)
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out struct {
		EmailAddress  string `json:"emailAddress"`
		MessagesTotal int    `json:"messagesTotal"`
		ThreadsTotal  int    `json:"threadsTotal"`
	}
	if err := c.request(ctx, httpapi.Request{URL: c.baseURL + "/profile"}, &out); err != nil {
		return nil, err
	}
	return &Profile{EmailAddress: out.EmailAddress, MessagesTotal: out.MessagesTotal, ThreadsTotal: out.ThreadsTotal}, nil
}

// List searches with query and fetches each hit in full, keeping the
// listing order.
func (c *Client) List(ctx context.Context, query string, limit int) ([]Message, error) {
	var ids struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	q := url.Values{"q": {query}, "maxResults": {strconv.Itoa(limit)}}
	if err := c.request(ctx, httpapi.Request{URL: c.baseURL + "/messages", Query: q}, &ids); err != nil {
		return nil, err
	}

	out := make([]Message, len(ids.Messages))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchParallel)
	for i, m := range ids.Messages {
		eg.Go(func() error {
			msg, err := c.Get(egCtx, m.ID)
			if err != nil {
				return err
			}
			out[i] = *msg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Message, error) {
	var raw rawMessage
	q := url.Values{"format": {"full"}}
	if err := c.request(ctx, httpapi.Request{URL: c.baseURL + "/messages/" + url.PathEscape(id), Query: q}, &raw); err != nil {
		return nil, err
	}
	return parseMessage(raw)
}

func parseMessage(raw rawMessage) (*Message, error) {
	msg := &Message{ID: raw.ID, ThreadID: raw.ThreadID, Snippet: raw.Snippet}
	for _, h := range raw.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "date":
			msg.Date = h.Value
		case "from":
			msg.From = h.Value
		case "to":
			msg.To = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}

	p := findPart(raw.Payload, "text/plain")
	if p == nil {
		p = findPart(raw.Payload, "text/html")
		msg.IsHTML = p != nil
	}
	if p != nil {
		body, err := DecodeBody(p.Body.Data)
		if err != nil {
			return nil, apierr.Decode("message "+raw.ID+" body", err)
		}
		msg.Body = body
	}
	return msg, nil
}

// findPart returns the first part of the given type, depth first.
func findPart(p part, mimeType string) *part {
	if strings.EqualFold(p.MimeType, mimeType) && p.Body.Data != "" {
		return &p
	}
	for _, child := range p.Parts {
		if found := findPart(child, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// DecodeBody decodes base64url body data, with or without padding.
func DecodeBody(data string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BuildRaw renders an RFC 2822 message for the send endpoint.
func BuildRaw(req SendRequest) []byte {
	var b bytes.Buffer
	contentType := "text/plain"
	if req.HTML {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "To: %s\r\n", req.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", req.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	if req.ReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", req.ReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", req.ReplyTo)
	}
	b.WriteString("\r\n")
	b.WriteString(base64.StdEncoding.EncodeToString([]byte(req.Body)))
	b.WriteString("\r\n")
	return b.Bytes()
}

func (c *Client) Send(ctx context.Context, req SendRequest) (*Sent, error) {
	body := map[string]string{"raw": base64.URLEncoding.EncodeToString(BuildRaw(req))}
	if req.ReplyTo != "" {
		body["threadId"] = req.ReplyTo
	}
	var out struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	}
	if err := c.request(ctx, httpapi.Request{URL: c.baseURL + "/messages/send", JSON: body}, &out); err != nil {
		return nil, err
	}
	return &Sent{MessageID: out.ID, ThreadID: out.ThreadID}, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.request(ctx, httpapi.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/messages/" + url.PathEscape(id) + "/modify",
		JSON:   map[string][]string{"removeLabelIds": {"UNREAD"}},
	}, nil)
}
