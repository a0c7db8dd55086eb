// Package resource assigns a coarse resource type to a reference.
package resource

import (
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/hmfcrawl/internal/model"
)

var schemeTypes = map[string]model.ResourceType{
	"mailto": model.ResourceMail,
	"tel":    model.ResourceTel,
	"data":   model.ResourceData,
	"blob":   model.ResourceBlob,
	"ftp":    model.ResourceFTP,
}

var extensionTypes = map[string]model.ResourceType{
	"jpg":   model.ResourceImage,
	"jpeg":  model.ResourceImage,
	"png":   model.ResourceImage,
	"gif":   model.ResourceImage,
	"webp":  model.ResourceImage,
	"svg":   model.ResourceSVG,
	"pdf":   model.ResourcePDF,
	"css":   model.ResourceCSS,
	"js":    model.ResourceJS,
	"mjs":   model.ResourceJS,
	"woff":  model.ResourceFont,
	"woff2": model.ResourceFont,
	"ttf":   model.ResourceFont,
	"otf":   model.ResourceFont,
	"eot":   model.ResourceFont,
	"mp4":   model.ResourceVideo,
	"webm":  model.ResourceVideo,
	"mp3":   model.ResourceAudio,
	"wav":   model.ResourceAudio,
	"ogg":   model.ResourceAudio,
	"json":  model.ResourceJSON,
	"xml":   model.ResourceXML,
	"ico":   model.ResourceIcon,
}

// Classify returns the resource type of a reference.
//
// The scheme decides first: mailto, tel, data, blob and ftp have dedicated
// types and any other non-HTTP(S) scheme yields its upper-cased name. For
// HTTP(S) URLs the path extension decides next, and everything left is HTML.
// References whose scheme cannot be determined are OTHER.
func Classify(rawHref, resolvedURL string) model.ResourceType {
	target := resolvedURL
	if target == "" {
		target = strings.TrimSpace(rawHref)
	}

	u, err := url.Parse(target)
	if err != nil {
		scheme := schemeOf(target)
		if scheme == "http" || scheme == "https" {
			return model.ResourceHTML
		}
		return classifyScheme(scheme)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return classifyScheme(scheme)
	}

	if t, ok := extensionTypes[Extension(u.Path)]; ok {
		return t
	}
	return model.ResourceHTML
}

// Extension returns the lower-cased extension of the last path segment,
// without the dot, or "" if it has none or it is not alphanumeric.
func Extension(p string) string {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}

func classifyScheme(scheme string) model.ResourceType {
	if scheme == "" {
		return model.ResourceOther
	}
	if t, ok := schemeTypes[scheme]; ok {
		return t
	}
	return model.ResourceType(strings.ToUpper(scheme))
}

// schemeOf extracts a scheme from a string url.Parse rejected.
func schemeOf(s string) string {
	scheme, _, found := strings.Cut(s, ":")
	if !found || scheme == "" {
		return ""
	}
	for i, r := range scheme {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if i == 0 && !isAlpha {
			return ""
		}
		if !isAlpha && (r < '0' || r > '9') && r != '+' && r != '-' && r != '.' {
			return ""
		}
	}
	return strings.ToLower(scheme)
}
