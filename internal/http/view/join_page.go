package view

import (
	"bytes"
	"html/template"
	"time"
)

// JoinPageData provides the dynamic fields required by the join template.
type JoinPageData struct {
	Title         string
	LinkTitle     string
	ResourceID    string
	AcceptURL     string
	RequestNeeded bool
	ExpiresAt     *time.Time
	// SpotsLeft is the remaining usage, negative when the link has no limit.
	SpotsLeft int
	// Message replaces the form when the link cannot be used.
	Message string
}

var joinPageTmpl = template.Must(template.New("join_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(520px, 92vw);
		}
		p { color: var(--muted); margin-top: 0; }
		.facts { margin: 24px 0; padding: 18px; border-radius: 14px; border: 1px solid rgba(125, 211, 252, 0.25); }
		button {
			padding: 0 28px;
			height: 48px;
			border: 0;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			cursor: pointer;
		}
	</style>
</head>
<body>
	<div class="card">
		<h1>{{if .LinkTitle}}{{.LinkTitle}}{{else}}You are invited{{end}}</h1>
		{{if .Message}}
		<p>{{.Message}}</p>
		{{else}}
		<p>This link invites you to <strong>{{.ResourceID}}</strong>.</p>
		<div class="facts">
			{{if .RequestNeeded}}<div>An admin approves every request.</div>{{end}}
			{{if .ExpiresAt}}<div>Valid until {{.ExpiresAt.UTC.Format "2006-01-02 15:04 MST"}}.</div>{{end}}
			{{if ge .SpotsLeft 0}}<div>{{.SpotsLeft}} spots left.</div>{{end}}
		</div>
		<form method="post" action="{{.AcceptURL}}">
			<button type="submit">{{if .RequestNeeded}}Request to join{{else}}Join{{end}}</button>
		</form>
		{{end}}
	</div>
</body>
</html>
`))

// RenderJoinPage expands the join page template with the provided data.
func RenderJoinPage(data JoinPageData) (string, error) {
	if data.Title == "" {
		data.Title = "Join"
	}
	var buf bytes.Buffer
	if err := joinPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
