package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/library-min/TF-Planner-sub000/internal/models"
	"github.com/library-min/TF-Planner-sub000/internal/relay"
	"github.com/library-min/TF-Planner-sub000/internal/rooms"
)

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) GetOrCreateIndividualRoom(ctx context.Context, userA, nameA, userB, nameB string) (models.Room, bool, error) {
	args := m.Called(ctx, userA, nameA, userB, nameB)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Bool(1), args.Error(2)
}

func (m *DirectoryMock) CreateGroupRoom(ctx context.Context, creatorID, creatorName string, participants []models.Participant, name string) (models.Room, error) {
	args := m.Called(ctx, creatorID, creatorName, participants, name)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *DirectoryMock) EnsureGroupRoom(ctx context.Context, roomID, creatorID, creatorName string, participants []models.Participant) (models.Room, bool, error) {
	args := m.Called(ctx, roomID, creatorID, creatorName, participants)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Bool(1), args.Error(2)
}

func (m *DirectoryMock) CreateBroadcastRoom(ctx context.Context, creatorID, creatorName, name string, participants []models.Participant) (models.Room, error) {
	args := m.Called(ctx, creatorID, creatorName, name, participants)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *DirectoryMock) Invite(ctx context.Context, roomID string, newParticipants []models.Participant) (models.Room, error) {
	args := m.Called(ctx, roomID, newParticipants)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *DirectoryMock) Remove(ctx context.Context, roomID, userID string) (models.Room, error) {
	args := m.Called(ctx, roomID, userID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *DirectoryMock) GetByID(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *DirectoryMock) GetByParticipantPair(ctx context.Context, userA, userB string) (models.Room, error) {
	args := m.Called(ctx, userA, userB)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *DirectoryMock) RoomsFor(ctx context.Context, userID string) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	var list []models.Room
	if val := args.Get(0); val != nil {
		list = val.([]models.Room)
	}
	return list, args.Error(1)
}

func (m *DirectoryMock) AppendMessage(ctx context.Context, roomID string, msg models.Message) error {
	args := m.Called(ctx, roomID, msg)
	return args.Error(0)
}

func (m *DirectoryMock) Messages(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type SenderMock struct {
	mock.Mock
}

func (m *SenderMock) Deliver(connID string, event models.ServerEvent) error {
	args := m.Called(connID, event)
	return args.Error(0)
}

type HistorySourceMock struct {
	mock.Mock
}

func (m *HistorySourceMock) History(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

var _ rooms.Directory = (*DirectoryMock)(nil)
var _ relay.Sender = (*SenderMock)(nil)
