package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/foureyes/bando/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates       tmplCache
	frontendBaseURL string
	tmplMu          sync.RWMutex
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // text/plain content used when the template has no .txt variant

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages without waiting for delivery.
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates loads every email template embedded in the binary.
// Until it is called, messages render to their BodyStr only.
func ParseEmailTemplates(conf *Config, logger Logger) {
	cache, err := parseTemplates(appfs.FS, conf.Debug || conf.TestMode)
	if err != nil {
		logger.Error("parsing email templates", err)
	}

	tmplMu.Lock()
	defer tmplMu.Unlock()
	templates = cache
	frontendBaseURL = conf.FrontendBaseURL
}

func parseTemplates(fsys fs.FS, strict bool) (tmplCache, error) {
	cache := make(tmplCache)

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return cache, errors.Wrap(err, "listing templates")
	}

	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = new(tmplCacheEntry)
			cache[name] = entry
		}

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				return cache, errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				return cache, errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
	}
	return cache, nil
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate() *tmplCacheEntry {
	if m.TemplateName == "" {
		return nil
	}
	return templates[m.TemplateName]
}

// Render fills TextContent and HTMLContent.
func (m *EmailMessage) Render() error {
	tmplMu.RLock()
	defer tmplMu.RUnlock()

	entry := m.getTemplate()

	if entry != nil && entry.text != nil {
		var buff bytes.Buffer
		if err := entry.text.Execute(&buff, m.getContextData()); err != nil {
			return errors.Wrap(err, "rendering text")
		}
		m.TextContent = buff.String()
	} else {
		m.TextContent = m.BodyStr
	}

	if entry != nil && entry.html != nil {
		var buff bytes.Buffer
		if err := entry.html.Execute(&buff, m.getContextData()); err != nil {
			return errors.Wrap(err, "rendering html")
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
