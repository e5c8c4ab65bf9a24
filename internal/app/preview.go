package app

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"trailcms/api/internal/rbac"
)

// handleARPreview renders the AR preview page of a POI. Browsers open it
// directly, so the access token travels in the query string.
func (s *HTTPServer) handleARPreview(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 2 {
		writePreviewError(w, http.StatusNotFound, "Not found")
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writePreviewError(w, http.StatusUnauthorized, "No token provided")
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writePreviewError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if err := s.service.Authorize(session, rbac.ActionRead); err != nil {
		writePreviewError(w, http.StatusForbidden, "Forbidden")
		return
	}

	preview, err := s.service.Content().Preview.Preview(r.Context(), parts[0], parts[1])
	if err != nil {
		status, _, message := mapError(err)
		if status == http.StatusInternalServerError {
			log.Printf("app: AR preview %s/%s: %v", parts[0], parts[1], err)
			message = "Error generating AR preview"
		}
		writePreviewError(w, status, message)
		return
	}

	var page bytes.Buffer
	if err := arPreviewTemplate.Execute(&page, preview); err != nil {
		log.Printf("app: render AR preview %s/%s: %v", parts[0], parts[1], err)
		writePreviewError(w, http.StatusInternalServerError, "Error generating AR preview")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page.Bytes())
}

func writePreviewError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}

var arPreviewTemplate = template.Must(template.New("ar-preview").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>AR Preview: {{.POITitle}}</title>
  <script src="https://cdn.jsdelivr.net/gh/aframevr/aframe@1.4.2/dist/aframe-master.min.js"></script>
  <script src="https://raw.githack.com/AR-js-org/AR.js/master/aframe/build/aframe-ar-nft.js"></script>
  <style>
    body { margin: 0; overflow: hidden; }
    .overlay { position: fixed; top: 0; left: 0; right: 0; padding: 12px; z-index: 10;
      font-family: sans-serif; color: #fff; background: rgba(0, 0, 0, 0.5); text-align: center; }
  </style>
</head>
<body>
  <div class="overlay">{{.POITitle}}: point the camera at the marker</div>
  <a-scene embedded vr-mode-ui="enabled: false" renderer="logarithmicDepthBuffer: true;"
    arjs="trackingMethod: best; sourceType: webcam; debugUIEnabled: false;">
    <a-nft type="nft" url="{{.NFTURL}}" smooth="true" smoothCount="10" smoothTolerance=".01" smoothThreshold="5">
      <a-entity gltf-model="{{.ModelURL}}" scale="{{.NFTScale}}" position="{{.NFTPosition}}" rotation="{{.NFTRotation}}"></a-entity>
    </a-nft>
    <a-entity camera></a-entity>
  </a-scene>
</body>
</html>
`))
