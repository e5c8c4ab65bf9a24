package content

import (
	"context"
	"strings"

	"trailcms/api/internal/cmserr"
)

// ARPreview is the data the AR preview page renders for one POI.
type ARPreview struct {
	POITitle    string `json:"poiTitle"`
	NFTURL      string `json:"nftUrl"`
	ModelURL    string `json:"modelUrl"`
	NFTScale    string `json:"nftScale"`
	NFTPosition string `json:"nftPosition"`
	NFTRotation string `json:"nftRotation"`
}

type PreviewService struct {
	pois       *POIService
	root       string
	rawBaseURL string
}

// Preview resolves the POI's first NFT marker and model into trunk URLs.
func (s *PreviewService) Preview(ctx context.Context, routeID, poiID string) (ARPreview, error) {
	poi, err := s.pois.Get(ctx, routeID, poiID)
	if err != nil {
		return ARPreview{}, err
	}
	if len(poi.AR.NFT) == 0 {
		return ARPreview{}, cmserr.NotFound("POI %q in route %q has no AR marker", poiID, routeID)
	}
	nft := poi.AR.NFT[0]
	mediaBase := strings.TrimSuffix(s.rawBaseURL, "/") + "/" + s.root + "/" + routeID + "/ar-media"
	return ARPreview{
		POITitle:    poi.Title,
		NFTURL:      mediaBase + "/images/" + nft.ID,
		ModelURL:    mediaBase + "/models/" + nft.Model + ".glb",
		NFTScale:    nft.Scale,
		NFTPosition: nft.Position,
		NFTRotation: nft.Rotation,
	}, nil
}
