package send

import (
	"context"

	"github.com/jobchat/internal/model"
)

// PickOutcome discriminates the result of a picker interaction. Cancel and
// permission denial are ordinary outcomes, not errors: the pipeline decides
// how each is surfaced.
type PickOutcome string

const (
	PickPicked    PickOutcome = "picked"
	PickCancelled PickOutcome = "cancelled"
	PickDenied    PickOutcome = "denied"
	PickError     PickOutcome = "error"
)

type PickResult struct {
	Outcome PickOutcome
	File    model.FileAttachment
	Err     error
}

// ImagePicker выбирает одно изображение из галереи. Реализация на стороне
// хоста обязана сама запросить доступ к медиатеке и вернуть PickDenied,
// если доступ не выдан.
type ImagePicker interface {
	PickImage(ctx context.Context) PickResult
}

// FilePicker выбирает документ; allowed — список допустимых mime-типов.
type FilePicker interface {
	PickFile(ctx context.Context, allowed []string) PickResult
}

// AllowedFileTypes are the document mime types the file pipeline accepts
// (PDF and Word).
var AllowedFileTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func allowedFileType(mimeType string) bool {
	for _, t := range AllowedFileTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}
