package mapper

import (
	"bchat-be/internal/entity"
	"bchat-be/internal/model"
)

type RoomMapper struct{}

func NewRoomMapper() *RoomMapper {
	return &RoomMapper{}
}

func (m *RoomMapper) ToEntity(r *model.Room) *entity.Room {
	if r == nil {
		return nil
	}
	members := make([]entity.Membership, 0, len(r.Members))
	for _, rm := range r.Members {
		members = append(members, m.MemberToEntity(rm))
	}
	return &entity.Room{
		Id:         r.Id,
		JoinCode:   r.JoinCode,
		Name:       r.Name,
		SecretHash: r.SecretHash,
		CreatedBy:  r.CreatedBy,
		ExpiresAt:  r.ExpiresAt,
		Members:    members,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// ToModel maps the room row only; membership rows are written separately.
func (m *RoomMapper) ToModel(r *entity.Room) *model.Room {
	if r == nil {
		return nil
	}
	return &model.Room{
		Id:         r.Id,
		JoinCode:   r.JoinCode,
		Name:       r.Name,
		SecretHash: r.SecretHash,
		CreatedBy:  r.CreatedBy,
		ExpiresAt:  r.ExpiresAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (m *RoomMapper) MemberToEntity(rm *model.RoomMember) entity.Membership {
	membership := entity.Membership{
		UserId:   rm.UserId,
		Role:     entity.MemberRole(rm.Role),
		JoinedAt: rm.JoinedAt,
	}
	if rm.User != nil {
		membership.Username = rm.User.Username
	}
	return membership
}

func (m *RoomMapper) ToEntities(rooms []*model.Room) []*entity.Room {
	result := make([]*entity.Room, 0, len(rooms))
	for _, r := range rooms {
		result = append(result, m.ToEntity(r))
	}
	return result
}
