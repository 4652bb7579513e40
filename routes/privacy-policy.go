package routes

import (
	"fmt"
	"net/http"
)

// PrivacyPolicyHandler serves the Privacy Policy content
func PrivacyPolicyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")

	html := `
	<!DOCTYPE html>
	<html lang="en">
	<head>
		<meta charset="UTF-8">
		<meta name="viewport" content="width=device-width, initial-scale=1.0">
		<title>Privacy Policy</title>
	</head>
	<body>
		<h1>Privacy Policy</h1>
		<p>Nearby only shows you to other people while discovery is turned on in your settings.</p>
		<p>We keep the latest location, WiFi network and Bluetooth identifier you share, one of each, and overwrite it on every update. No history is kept.</p>
		<p>Other users never see your coordinates, network or device identifiers. They see a distance, or that you are on the same network or within radio range.</p>
		<p>You can hide your age, your distance and when you were last seen at any time.</p>
	</body>
	</html>
	`
	fmt.Fprint(w, html)
}
