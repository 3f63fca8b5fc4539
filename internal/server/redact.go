package server

import "strings"

const webhookPrefix = "/webhook/"

// redactWebhookPath hides the secret segment of webhook URIs in access logs.
func redactWebhookPath(uri string) string {
	if !strings.HasPrefix(uri, webhookPrefix) || len(uri) == len(webhookPrefix) {
		return uri
	}
	rest := uri[len(webhookPrefix):]
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		return webhookPrefix + "***" + rest[i:]
	}
	return webhookPrefix + "***"
}
