// SPDX-License-Identifier: MIT

package config

import (
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

const maskedValue = "***"

// secretMarkers flag a key as secret when found anywhere in its lowercased
// name.
var secretMarkers = []string{"password", "passwd", "secret", "token", "apikey", "api_key", "credential"}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, m := range secretMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}

// MaskURL hides the userinfo of rawURL. Unparseable input is returned as is.
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	u.User = nil
	scheme, rest, _ := strings.Cut(u.String(), "://")
	return scheme + "://" + maskedValue + "@" + rest
}

// maskNode rewrites a YAML tree in place: non-empty secret scalars become
// "***" and values of keys ending in "url" lose their credentials.
func maskNode(n *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		for _, c := range n.Content {
			maskNode(c)
		}
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			maskNode(val)
			continue
		}
		switch {
		case isSecretKey(key) && val.Value != "":
			val.SetString(maskedValue)
		case strings.HasSuffix(strings.ToLower(key), "url"):
			val.Value = MaskURL(val.Value)
		}
	}
}

func maskedTree(v any) (*yaml.Node, error) {
	var doc yaml.Node
	if err := doc.Encode(v); err != nil {
		return nil, err
	}
	maskNode(&doc)
	return &doc, nil
}

// MaskSecrets returns v as generic maps and slices, keyed by YAML names,
// with secrets masked. It returns nil if v cannot be encoded.
func MaskSecrets(v any) any {
	doc, err := maskedTree(v)
	if err != nil {
		return nil
	}
	var out any
	if err := doc.Decode(&out); err != nil {
		return nil
	}
	return out
}

// Dump renders cfg as YAML with secrets masked.
func Dump(cfg AppConfig) ([]byte, error) {
	doc, err := maskedTree(cfg)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
