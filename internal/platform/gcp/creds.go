package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/yungbote/storyboard-backend/internal/platform/envutil"
)

// clientOptions reads credentials from GOOGLE_APPLICATION_CREDENTIALS_JSON
// (inline key) or GOOGLE_APPLICATION_CREDENTIALS (key file path). With neither
// set the clients use application default credentials.
func clientOptions(scopes ...string) []option.ClientOption {
	var opts []option.ClientOption
	switch creds := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")); {
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	case creds != "":
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	if project := envutil.String("GOOGLE_CLOUD_QUOTA_PROJECT", ""); project != "" {
		opts = append(opts, option.WithQuotaProject(project))
	}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts
}
