package dto

type CreateRoomRequest struct {
	Name           *string  `json:"name"`
	Kind           string   `json:"kind" binding:"required,oneof=direct group"`
	ParticipantIDs []string `json:"participantIds" binding:"required,min=1"`
}

type UpdateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}
