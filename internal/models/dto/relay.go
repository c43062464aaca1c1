package dto

// TryOnRequest carries the two images to compose, base64 encoded.
type TryOnRequest struct {
	HumanBase64   string `json:"human_base64"`
	GarmentBase64 string `json:"garm_base64"`
}

type TryOnResponse struct {
	VTONImage string `json:"vton_image"`
}

type RecommendResponse struct {
	RecommendedImages []string `json:"recommended_images"`
}
