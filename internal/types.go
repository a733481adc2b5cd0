package internal

import (
	"fmt"
	"time"
)

type RelationshipStrength string

const (
	StrengthWeak   RelationshipStrength = "weak"
	StrengthMedium RelationshipStrength = "medium"
	StrengthStrong RelationshipStrength = "strong"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type ImportSource string

const (
	SourceCSV   ImportSource = "csv"
	SourceXLSX  ImportSource = "xlsx"
	SourceHTML  ImportSource = "html"
	SourceGmail ImportSource = "gmail"
	SourceIMAP  ImportSource = "imap"
)

type UploadStatus string

const (
	UploadSuccess UploadStatus = "success"
	UploadPartial UploadStatus = "partial"
	UploadFailed  UploadStatus = "failed"
)

// RawRow holds the cells of one data line, aligned to the header.
type RawRow []string

// NormalizedRow maps canonical field names to cleaned cell values.
type NormalizedRow map[string]string

type Contact struct {
	ID                   string               `json:"id,omitempty"`
	UserID               string               `json:"userId,omitempty"`
	Name                 string               `json:"name"`
	Email                *string              `json:"email,omitempty"`
	Phone                *string              `json:"phone,omitempty"`
	Company              *string              `json:"company,omitempty"`
	Title                *string              `json:"title,omitempty"`
	ProfileURL           *string              `json:"profileUrl,omitempty"`
	RelationshipStrength RelationshipStrength `json:"relationshipStrength"`
	ConnectedOn          *time.Time           `json:"connectedOn,omitempty"`
	AddedAt              time.Time            `json:"addedAt"`
	LastContactAt        *time.Time           `json:"lastContactAt,omitempty"`
	Tags                 []string             `json:"tags"`
	Notes                string               `json:"notes,omitempty"`
	CreatedAt            time.Time            `json:"createdAt,omitempty"`
	UpdatedAt            time.Time            `json:"updatedAt,omitempty"`
}

type Diagnostic struct {
	Severity Severity `json:"severity"`
	Row      int      `json:"row,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return d.Message
}

// ImportOutcome is the result of one pipeline run. It is built once and not
// changed after it is returned.
type ImportOutcome struct {
	Contacts    []Contact     `json:"contacts"`
	TotalRows   int           `json:"totalRows"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Encoding    string        `json:"encoding"`
	Delimiter   string        `json:"delimiter"`
	HeaderIndex int           `json:"headerIndex"`
	Header      []string      `json:"header"`
	Elapsed     time.Duration `json:"elapsed"`
	TimedOut    bool          `json:"timedOut"`
}

// Messages renders at most limit diagnostic messages; limit <= 0 means all.
func (o ImportOutcome) Messages(limit int) []string {
	n := len(o.Diagnostics)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]string, 0, n)
	for _, d := range o.Diagnostics[:n] {
		out = append(out, d.Message)
	}
	return out
}

func (o ImportOutcome) ErrorCount() int {
	count := 0
	for _, d := range o.Diagnostics {
		if d.Severity == SeverityError {
			count++
		}
	}
	return count
}

type UploadRecord struct {
	ID                string       `json:"id"`
	UserID            string       `json:"userId"`
	FileName          string       `json:"fileName"`
	FileSize          int64        `json:"fileSize"`
	FileType          string       `json:"fileType"`
	Source            ImportSource `json:"source"`
	ContactsImported  int          `json:"contactsImported"`
	TotalRows         int          `json:"totalRows"`
	Status            UploadStatus `json:"status"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
	Diagnostics       []string     `json:"diagnostics"`
	ProcessingSeconds float64      `json:"processingSeconds"`
	UploadedAt        time.Time    `json:"uploadedAt"`
}

type TargetCompany struct {
	ID        int       `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Domains   []string  `json:"domains"`
	CreatedAt time.Time `json:"createdAt"`
}

type Interaction struct {
	ID         int       `json:"id"`
	ContactID  string    `json:"contactId"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"externalId"`
	Kind       string    `json:"kind"`
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurredAt"`
}

type ContactStats struct {
	Total         int                          `json:"total"`
	ByStrength    map[RelationshipStrength]int `json:"byStrength"`
	WithEmail     int                          `json:"withEmail"`
	WithCompany   int                          `json:"withCompany"`
	RecentlyAdded int                          `json:"recentlyAdded"`
}

type CompanyGroup struct {
	Company  string    `json:"company"`
	Contacts []Contact `json:"contacts"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// CalendarEvent is a past event with its attendee addresses.
type CalendarEvent struct {
	ID        string
	Summary   string
	StartsAt  time.Time
	Attendees []string
}

func (c Contact) String() string {
	if c.Email != nil {
		return fmt.Sprintf("%s <%s>", c.Name, *c.Email)
	}
	return c.Name
}
