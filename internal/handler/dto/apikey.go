package dto

import "github.com/mangos/mangos/internal/model"

// APIKeyListResponse is the body of GET /api-keys.
type APIKeyListResponse struct {
	Keys []model.APIKeyResponse `json:"keys"`
}

// ToAPIKeyListResponse converts keys to their secret-free form.
func ToAPIKeyListResponse(keys []*model.APIKey) APIKeyListResponse {
	out := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.ToResponse())
	}
	return APIKeyListResponse{Keys: out}
}

// ToAPIKeyCreateResponse builds the one-time response carrying plaintext.
func ToAPIKeyCreateResponse(key *model.APIKey, plaintext string) model.APIKeyCreateResponse {
	return model.APIKeyCreateResponse{
		ID:            key.ID,
		Key:           plaintext,
		Name:          key.Name,
		KeyPrefix:     key.KeyPrefix,
		Scopes:        key.Scopes,
		RateLimitTier: key.RateLimitTier,
		CreatedAt:     key.CreatedAt,
	}
}
