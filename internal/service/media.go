package service

import "strings"

const defaultProfilePath = "uploads/profile"

// MediaURLs builds public URLs for stored uploads
type MediaURLs struct {
	BaseURL     string
	ProfilePath string
}

// ProfileImage returns the absolute URL of a stored profile image filename
func (m MediaURLs) ProfileImage(filename string) string {
	path := strings.TrimPrefix(m.ProfilePath, ".")
	path = strings.Trim(path, "/")
	if path == "" {
		path = defaultProfilePath
	}
	return strings.TrimSuffix(m.BaseURL, "/") + "/" + path + "/" + filename
}
