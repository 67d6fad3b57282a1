package steps

import (
	"context"
	"log"

	"telegramsupportbot/pkg/filestore"
	"telegramsupportbot/pkg/state"
)

type fileUploadStep struct {
	files Downloader
}

// NewFileUploadStep returns the step that downloads a document or photo
// sent by the user and attaches it to the draft.
func NewFileUploadStep(files Downloader) Step {
	return &fileUploadStep{files: files}
}

func (f *fileUploadStep) State() string {
	return state.StateFileUpload
}

func (f *fileUploadStep) Prompt(rc RenderContext) (PromptSpec, error) {
	return PromptSpec{
		Text:     "Отправьте файл или фото:",
		Keyboard: cancelKeyboard(),
	}, nil
}

func (f *fileUploadStep) Handle(ctx context.Context, hc HandleContext, input Input) (Result, error) {
	if input.Source != SourceAttachment || input.Attachment == nil {
		return Result{
			Feedback: "Пожалуйста, отправьте файл или фото.",
			Repeat:   true,
		}, nil
	}

	draft, err := ensureDraft(hc.Draft)
	if err != nil {
		return Result{}, err
	}

	localPath, err := f.files.Download(ctx, filestore.Handle{
		FileID:       input.Attachment.FileID,
		OriginalName: input.Attachment.Name,
		Kind:         input.Attachment.Kind,
	})
	if err != nil {
		log.Printf("[fileUploadStep.Handle] download failed for chat %d: %v", hc.ChatID, err)
		return Result{
			Feedback: "Произошла ошибка при загрузке файла. Попробуйте снова.",
			Repeat:   true,
		}, nil
	}

	draft.AttachmentPath = localPath
	draft.AttachmentKind = input.Attachment.Kind
	return Result{Done: true}, nil
}
