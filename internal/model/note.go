package model

const (
	NoteSourceStudent = "student"
	NoteSourceFaculty = "faculty"
)

// Note is the relational record of one uploaded file. Classification fields
// stay nil when extraction or the AI collaborator could not fill them.
type Note struct {
	ID            string  `json:"id"`
	StudentID     string  `json:"student_id"`
	Subject       *string `json:"subject"`
	Topic         *string `json:"topic"`
	Chapter       *string `json:"chapter"`
	FileKey       string  `json:"-"`
	FileURL       string  `json:"file_url"`
	FileName      string  `json:"file_name"`
	FileType      string  `json:"file_type"`
	ExtractedText *string `json:"extracted_text,omitempty"`
	Summary       *string `json:"summary"`
	Source        string  `json:"source"`
	CreatedAt     int64   `json:"created_at"`
}

func IsValidNoteSource(source string) bool {
	return source == NoteSourceStudent || source == NoteSourceFaculty
}
