// internal/archive/transcript.go
package archive

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strings"
	"time"

	"discord-ticket-bot/internal/media"
	"discord-ticket-bot/internal/models"
)

const (
	dateLayout = "02.01.2006"
	timeLayout = "15:04:05"
)

type transcriptData struct {
	ChannelID    string
	MessageCount int
	GeneratedAt  string
	Messages     []messageView
}

type messageView struct {
	// DateDivider is set on the first message of each calendar day.
	DateDivider string
	Username    string
	Initial     string
	AvatarURL   string
	IsBot       bool
	Time        string
	Content     template.HTML
	Attachments []attachmentView
	Embeds      []embedView
	EmbedError  string
}

type attachmentView struct {
	Kind        string
	MediaPath   string
	Name        string
	Size        string
	ContentType string
}

type embedView struct {
	Color        string
	Title        string
	Description  template.HTML
	Fields       []embedFieldView
	ImageURL     string
	ThumbnailURL string
	FooterText   string
	FooterIcon   string
}

type embedFieldView struct {
	Name  string
	Value template.HTML
}

// renderTranscript writes the transcript page for a channel's message
// history in arrival order.
func renderTranscript(w io.Writer, channelID string, messages []models.ChannelMessage, botUserID string) error {
	data := transcriptData{
		ChannelID:    channelID,
		MessageCount: len(messages),
		GeneratedAt:  time.Now().Format(dateLayout + " " + timeLayout),
	}

	currentDate := ""
	for i := range messages {
		view := buildMessageView(&messages[i], botUserID)
		if date := messages[i].Timestamp.Format(dateLayout); date != currentDate {
			currentDate = date
			view.DateDivider = date
		}
		data.Messages = append(data.Messages, view)
	}

	return transcriptTemplate.Execute(w, data)
}

func buildMessageView(msg *models.ChannelMessage, botUserID string) messageView {
	username := msg.Username
	if username == "" {
		username = "Unknown user"
	}
	initial := "?"
	if r := []rune(username); len(r) > 0 {
		initial = strings.ToUpper(string(r[0]))
	}

	view := messageView{
		Username:  username,
		Initial:   initial,
		AvatarURL: msg.AvatarURL,
		IsBot:     botUserID != "" && msg.UserID == botUserID,
		Time:      msg.Timestamp.Format(timeLayout),
	}

	if strings.TrimSpace(msg.Content) != "" {
		view.Content = nl2br(msg.Content)
	}

	if attachments, err := msg.Attachments(); err == nil {
		for _, att := range attachments {
			view.Attachments = append(view.Attachments, buildAttachmentView(att))
		}
	}

	embeds, err := msg.Embeds()
	if err != nil {
		// A broken embed blob must not abort the whole archive; it renders
		// as a visible placeholder instead.
		view.EmbedError = fmt.Sprintf("Embed content could not be loaded: %v", err)
		return view
	}
	for _, embed := range embeds {
		view.Embeds = append(view.Embeds, buildEmbedView(embed))
	}
	return view
}

func buildAttachmentView(att models.Attachment) attachmentView {
	kind := att.Type
	if kind == "" {
		kind = media.FileTypeForName(att.Name)
	}

	view := attachmentView{
		Kind:        kind,
		Name:        att.Name,
		Size:        media.FormatFileSize(att.Size),
		ContentType: att.ContentType,
	}
	if view.Name == "" {
		view.Name = "File"
	}
	if att.LocalPath != "" {
		// Media is staged under media/ next to the transcript.
		view.MediaPath = "media/" + filepath.Base(att.LocalPath)
	}
	return view
}

func buildEmbedView(embed models.Embed) embedView {
	view := embedView{
		Title:       embed.Title,
		Description: nl2br(embed.Description),
	}
	if embed.Color != 0 {
		view.Color = fmt.Sprintf("#%06x", embed.Color&0xffffff)
	}
	for _, field := range embed.Fields {
		view.Fields = append(view.Fields, embedFieldView{
			Name:  field.Name,
			Value: nl2br(field.Value),
		})
	}
	if embed.Image != nil {
		view.ImageURL = embed.Image.URL
	}
	if embed.Thumbnail != nil {
		view.ThumbnailURL = embed.Thumbnail.URL
	}
	if embed.Footer != nil {
		view.FooterText = embed.Footer.Text
		view.FooterIcon = embed.Footer.IconURL
	}
	return view
}

// nl2br escapes text and converts newlines to <br> tags.
func nl2br(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

var transcriptTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Ticket Transcript - #{{.ChannelID}}</title>
  <style>
    :root {
      --bg-color: #2c2f33;
      --text-color: #ffffff;
      --accent-color: #5865f2;
      --bubble-bg: #3b4da8;
      --embed-bg: #36393f;
      --border-radius: 15px;
      --timestamp-color: #72767d;
      --attachment-bg: #2f3136;
      --link-color: #00aff4;
    }
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      background-color: var(--bg-color);
      color: var(--text-color);
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      line-height: 1.6;
      padding: 20px 10px;
    }
    .container { width: 95%; max-width: 1200px; margin: 0 auto; }
    .header {
      text-align: center;
      margin-bottom: 20px;
      padding: 20px;
      background-color: var(--embed-bg);
      border-radius: var(--border-radius);
    }
    .channel-info {
      display: flex;
      justify-content: space-between;
      align-items: center;
      background-color: var(--embed-bg);
      padding: 15px;
      border-radius: var(--border-radius);
      flex-wrap: wrap;
    }
    .channel-id { font-weight: bold; color: var(--accent-color); }
    .messages-container { margin-top: 20px; }
    .date-divider { text-align: center; position: relative; margin: 30px 0; }
    .date-divider::before {
      content: '';
      position: absolute;
      width: 100%;
      height: 1px;
      background-color: rgba(255, 255, 255, 0.1);
      top: 50%;
      left: 0;
    }
    .date-divider span {
      background-color: var(--bg-color);
      padding: 0 15px;
      position: relative;
      color: var(--timestamp-color);
      font-weight: bold;
    }
    .message-group { display: flex; margin-bottom: 16px; }
    .avatar {
      width: 40px;
      height: 40px;
      border-radius: 50%;
      margin-right: 12px;
      flex-shrink: 0;
      background-color: var(--accent-color);
      overflow: hidden;
    }
    .avatar img { width: 100%; height: 100%; object-fit: cover; }
    .avatar-placeholder {
      display: flex;
      align-items: center;
      justify-content: center;
      width: 100%;
      height: 100%;
      color: white;
      font-weight: bold;
    }
    .message-content { flex: 1; max-width: 80%; }
    .author-name { font-weight: bold; margin-bottom: 4px; display: flex; align-items: center; }
    .bot-tag {
      background-color: var(--accent-color);
      color: white;
      padding: 1px 4px;
      border-radius: 3px;
      font-size: 0.7em;
      margin-left: 6px;
    }
    .message-bubble {
      background-color: var(--bubble-bg);
      border-radius: var(--border-radius);
      padding: 10px 15px;
      margin-top: 5px;
      word-wrap: break-word;
    }
    .timestamp { font-size: 0.7em; color: var(--timestamp-color); margin-top: 4px; }
    .content { white-space: pre-wrap; margin-bottom: 8px; }
    .content.error { color: #f54242; }
    .attachments {
      display: grid;
      gap: 10px;
      grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
      margin-top: 8px;
    }
    .attachment {
      overflow: hidden;
      border-radius: 8px;
      background-color: var(--attachment-bg);
      border: 1px solid rgba(255, 255, 255, 0.1);
    }
    .attachment-image, .attachment-video {
      width: 100%;
      max-height: 400px;
      object-fit: contain;
      display: block;
    }
    .attachment-audio { width: 100%; padding: 10px; }
    .attachment-file { display: flex; flex-direction: column; padding: 10px; font-size: 0.9rem; }
    .attachment-filename {
      font-weight: bold;
      text-overflow: ellipsis;
      overflow: hidden;
      white-space: nowrap;
      margin-bottom: 5px;
    }
    .attachment-filesize { font-size: 0.8em; color: var(--timestamp-color); }
    .attachment-link { color: var(--link-color); text-decoration: none; margin-top: 5px; }
    .attachment-unresolved { font-size: 0.8em; color: var(--timestamp-color); font-style: italic; }
    .embeds { margin-top: 8px; display: flex; flex-direction: column; gap: 8px; }
    .embed {
      border-radius: 4px;
      border-left: 4px solid var(--accent-color);
      background-color: var(--embed-bg);
      padding: 12px;
      max-width: 520px;
    }
    .embed-title { font-weight: bold; margin-bottom: 8px; color: var(--accent-color); }
    .embed-description { font-size: 0.9rem; margin-bottom: 8px; }
    .embed-fields {
      display: grid;
      grid-template-columns: repeat(auto-fill, minmax(200px, 1fr));
      gap: 8px;
      margin-top: 8px;
    }
    .embed-field-name { font-weight: bold; font-size: 0.9rem; margin-bottom: 2px; }
    .embed-field-value { font-size: 0.85rem; }
    .embed-thumbnail { float: right; max-width: 80px; max-height: 80px; margin-left: 16px; border-radius: 3px; }
    .embed-image { margin-top: 8px; max-width: 100%; max-height: 300px; border-radius: 3px; }
    .embed-footer {
      margin-top: 8px;
      font-size: 0.8rem;
      color: var(--timestamp-color);
      display: flex;
      align-items: center;
    }
    .embed-footer-icon { width: 20px; height: 20px; border-radius: 50%; margin-right: 8px; }
    .footer { margin-top: 40px; text-align: center; padding: 20px; font-size: 0.8rem; color: var(--timestamp-color); }
    a { color: var(--link-color); text-decoration: none; }
    a:hover { text-decoration: underline; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Ticket Transcript</h1>
    </div>
    <div class="channel-info">
      <div>
        <div>Channel ID: <span class="channel-id">{{.ChannelID}}</span></div>
        <div>Total messages: {{.MessageCount}}</div>
      </div>
      <div>
        <div>Generated: {{.GeneratedAt}}</div>
      </div>
    </div>
    <div class="messages-container">
{{- range .Messages}}
{{- if .DateDivider}}
      <div class="date-divider"><span>{{.DateDivider}}</span></div>
{{- end}}
      <div class="message-group">
        <div class="avatar">
{{- if .AvatarURL}}
          <img src="{{.AvatarURL}}" alt="{{.Username}}" />
{{- else}}
          <div class="avatar-placeholder">{{.Initial}}</div>
{{- end}}
        </div>
        <div class="message-content">
          <div class="author-name">{{.Username}}{{if .IsBot}}<span class="bot-tag">BOT</span>{{end}}</div>
          <div class="message-bubble">
{{- if .Content}}
            <div class="content">{{.Content}}</div>
{{- end}}
{{- if .Attachments}}
            <div class="attachments">
{{- range .Attachments}}
{{- if and (eq .Kind "image") .MediaPath}}
              <div class="attachment"><img class="attachment-image" src="{{.MediaPath}}" alt="{{.Name}}" /></div>
{{- else if and (eq .Kind "video") .MediaPath}}
              <div class="attachment"><video class="attachment-video" controls><source src="{{.MediaPath}}" type="{{if .ContentType}}{{.ContentType}}{{else}}video/mp4{{end}}"></video></div>
{{- else if and (eq .Kind "audio") .MediaPath}}
              <div class="attachment"><audio class="attachment-audio" controls><source src="{{.MediaPath}}" type="{{if .ContentType}}{{.ContentType}}{{else}}audio/mpeg{{end}}"></audio></div>
{{- else if .MediaPath}}
              <div class="attachment">
                <div class="attachment-file">
                  <div class="attachment-filename">{{.Name}}</div>
                  <div class="attachment-filesize">{{.Size}}</div>
                  <a href="{{.MediaPath}}" class="attachment-link" download>Download</a>
                </div>
              </div>
{{- else}}
              <div class="attachment">
                <div class="attachment-file">
                  <div class="attachment-filename">{{.Name}}</div>
                  <div class="attachment-filesize">{{.Size}}</div>
                  <div class="attachment-unresolved">file unresolved</div>
                </div>
              </div>
{{- end}}
{{- end}}
            </div>
{{- end}}
{{- if .EmbedError}}
            <div class="content error">{{.EmbedError}}</div>
{{- end}}
{{- if .Embeds}}
            <div class="embeds">
{{- range .Embeds}}
              <div class="embed"{{if .Color}} style="border-left-color: {{.Color}}"{{end}}>
{{- if .Title}}
                <div class="embed-title">{{.Title}}</div>
{{- end}}
{{- if .Description}}
                <div class="embed-description">{{.Description}}</div>
{{- end}}
{{- if .Fields}}
                <div class="embed-fields">
{{- range .Fields}}
                  <div class="embed-field">
                    <div class="embed-field-name">{{.Name}}</div>
                    <div class="embed-field-value">{{.Value}}</div>
                  </div>
{{- end}}
                </div>
{{- end}}
{{- if .ImageURL}}
                <img class="embed-image" src="{{.ImageURL}}" alt="Embed image" />
{{- end}}
{{- if .ThumbnailURL}}
                <img class="embed-thumbnail" src="{{.ThumbnailURL}}" alt="Embed thumbnail" />
{{- end}}
{{- if or .FooterText .FooterIcon}}
                <div class="embed-footer">
{{- if .FooterIcon}}
                  <img class="embed-footer-icon" src="{{.FooterIcon}}" alt="" />
{{- end}}
                  {{.FooterText}}
                </div>
{{- end}}
              </div>
{{- end}}
            </div>
{{- end}}
          </div>
          <div class="timestamp">{{.Time}}</div>
        </div>
      </div>
{{- end}}
    </div>
    <div class="footer">
      <p>Generated by the support ticket bot on {{.GeneratedAt}}.</p>
    </div>
  </div>
</body>
</html>
`))
