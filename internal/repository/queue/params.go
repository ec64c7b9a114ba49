package queue

type AppendParams struct {
	RoomId string
	Track  Track
}

type InsertNextParams struct {
	RoomId     string
	CurrentIdx *int
	Track      Track
}

type RemoveParams struct {
	RoomId string
	Track  Track
}

type ReplaceParams struct {
	RoomId string
	Tracks []Track
}

type UpdateStatusParams struct {
	RoomId string
	Track  Track
}
