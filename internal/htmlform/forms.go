// Package htmlform extracts HTML forms from captured pages so form-driven
// endpoints appear in the generated document even before anyone submits
// them.
package htmlform

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Form is one discovered HTML form.
type Form struct {
	Action  string // path the form submits to
	Method  string // uppercased, defaults to GET
	Enctype string
	Inputs  []Input
}

// Input is one submittable field of a form.
type Input struct {
	Name     string
	Type     string // HTML input type, e.g. "text", "number", "checkbox"
	Required bool
}

// Extract parses HTML and returns the forms that submit to host. Forms
// without an action submit to the page's own path; forms targeting any
// other host are dropped.
func Extract(html, pagePath, host string) ([]Form, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var forms []Form
	doc.Find("form").Each(func(_ int, s *goquery.Selection) {
		form, ok := parseForm(s, pagePath, host)
		if !ok || form.Action == "" || !strings.HasPrefix(form.Action, "/") {
			// Cross-origin, javascript: and relative targets are out of scope.
			return
		}
		forms = append(forms, form)
	})

	return forms, nil
}

func parseForm(s *goquery.Selection, pagePath, host string) (Form, bool) {
	form := Form{
		Action:  pagePath,
		Method:  http.MethodGet,
		Enctype: "application/x-www-form-urlencoded",
	}

	if action, ok := s.Attr("action"); ok && action != "" {
		local, ok := resolveAction(action, host)
		if !ok {
			return Form{}, false
		}
		form.Action = local
	}
	if method, ok := s.Attr("method"); ok && method != "" {
		form.Method = strings.ToUpper(strings.TrimSpace(method))
	}
	if enctype, ok := s.Attr("enctype"); ok && enctype != "" {
		form.Enctype = strings.ToLower(strings.TrimSpace(enctype))
	}

	s.Find("input, textarea, select").Each(func(_ int, field *goquery.Selection) {
		name, ok := field.Attr("name")
		if !ok || name == "" {
			return
		}

		input := Input{Name: name, Type: "text"}
		switch goquery.NodeName(field) {
		case "textarea":
			input.Type = "textarea"
		case "select":
			input.Type = "select"
		default:
			if t, ok := field.Attr("type"); ok && t != "" {
				input.Type = strings.ToLower(t)
			}
		}
		if input.Type == "submit" || input.Type == "button" || input.Type == "image" {
			return
		}
		_, input.Required = field.Attr("required")

		form.Inputs = append(form.Inputs, input)
	})

	return form, true
}

// resolveAction reduces a form action to a local path, stripping any
// query/fragment suffix. Absolute and protocol-relative URLs keep only
// their path when they target host; any other host is rejected.
func resolveAction(action, host string) (string, bool) {
	action = strings.TrimSpace(action)
	if i := strings.IndexAny(action, "?#"); i >= 0 {
		action = action[:i]
	}
	if strings.HasPrefix(action, "//") ||
		strings.HasPrefix(action, "http://") ||
		strings.HasPrefix(action, "https://") {
		u, err := url.Parse(action)
		if err != nil || !strings.EqualFold(u.Host, host) {
			return "", false
		}
		if u.Path == "" {
			return "/", true
		}
		return u.Path, true
	}
	return action, true
}
