package app

import (
	"context"
	"fmt"

	"github.com/hylla/kanfile/internal/domain"
)

// defaultActivityLimit caps "list activity" when no limit is given.
const defaultActivityLimit = 50

// editTask builds a read-modify-write command over the task named by the "task" param.
func editTask(p Params, edit func(context.Context, *Env, *domain.Task) (any, error)) (Command, error) {
	ref, err := p.RequireString("task")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		task, err := readTask(ctx, env, ref)
		if err != nil {
			return Result{}, err
		}
		value, err := edit(ctx, env, &task)
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteTask(ctx, task); err != nil {
			return Result{}, err
		}
		return Result{Value: value, Affected: []domain.EntityRef{domain.TaskRef(task.ID)}}, nil
	}), nil
}

// viewTaskPart builds a read-only command over the task named by the "task" param.
func viewTaskPart(p Params, pick func(domain.Task) any) (Command, error) {
	ref, err := p.RequireString("task")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		task, err := readTask(ctx, env, ref)
		if err != nil {
			return Result{}, err
		}
		task.Normalize()
		return Result{Value: pick(task)}, nil
	}), nil
}

func buildAddComment(p Params) (Command, error) {
	body, err := p.RequireString("body")
	if err != nil {
		return nil, err
	}
	return editTask(p, func(ctx context.Context, env *Env, task *domain.Task) (any, error) {
		author, err := callerActorID(ctx, env)
		if err != nil {
			return nil, err
		}
		comment, err := domain.NewComment(domain.CommentID(env.NewID()), body, author)
		if err != nil {
			return nil, err
		}
		task.AddComment(comment)
		return comment, nil
	})
}

// ownComment loads a comment and checks that the caller wrote it.
func ownComment(ctx context.Context, env *Env, task domain.Task, id domain.CommentID) (domain.Comment, error) {
	comment, ok := task.Comment(id)
	if !ok {
		return domain.Comment{}, fmt.Errorf("%w: comment %q on task %q", ErrNotFound, id, task.ID)
	}
	caller, err := callerActorID(ctx, env)
	if err != nil {
		return domain.Comment{}, err
	}
	if !comment.AuthoredBy(caller) {
		return domain.Comment{}, fmt.Errorf("%w: comment %q belongs to %q", ErrConflict, id, comment.Author)
	}
	return comment, nil
}

func buildUpdateComment(p Params) (Command, error) {
	id, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	body, err := p.RequireString("body")
	if err != nil {
		return nil, err
	}
	return editTask(p, func(ctx context.Context, env *Env, task *domain.Task) (any, error) {
		if _, err := ownComment(ctx, env, *task, domain.CommentID(id)); err != nil {
			return nil, err
		}
		return task.EditComment(domain.CommentID(id), body)
	})
}

func buildDeleteComment(p Params) (Command, error) {
	id, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return editTask(p, func(ctx context.Context, env *Env, task *domain.Task) (any, error) {
		if _, err := ownComment(ctx, env, *task, domain.CommentID(id)); err != nil {
			return nil, err
		}
		task.RemoveComment(domain.CommentID(id))
		return deleted{ID: id, Deleted: true}, nil
	})
}

func buildListComments(p Params) (Command, error) {
	return viewTaskPart(p, func(t domain.Task) any { return t.Comments })
}

func buildAddSubtask(p Params) (Command, error) {
	title, err := p.RequireString("title")
	if err != nil {
		return nil, err
	}
	return editTask(p, func(_ context.Context, env *Env, task *domain.Task) (any, error) {
		subtask, err := domain.NewSubtask(domain.SubtaskID(env.NewID()), title)
		if err != nil {
			return nil, err
		}
		task.AddSubtask(subtask)
		return subtask, nil
	})
}

// findSubtask returns a pointer to a subtask or a not found error.
func findSubtask(task *domain.Task, id string) (*domain.Subtask, error) {
	subtask, ok := task.Subtask(domain.SubtaskID(id))
	if !ok {
		return nil, fmt.Errorf("%w: subtask %q on task %q", ErrNotFound, id, task.ID)
	}
	return subtask, nil
}

func buildUpdateSubtask(p Params) (Command, error) {
	id, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	title, hasTitle, err := p.Text("title", domain.ErrInvalidTitle)
	if err != nil {
		return nil, err
	}
	done, hasDone, err := p.Bool("done")
	if err != nil {
		return nil, err
	}
	if !hasTitle && !hasDone {
		return nil, fmt.Errorf("%w: nothing to update; provide title or done", ErrValidation)
	}
	return editTask(p, func(_ context.Context, _ *Env, task *domain.Task) (any, error) {
		subtask, err := findSubtask(task, id)
		if err != nil {
			return nil, err
		}
		if hasTitle {
			updated, err := domain.NewSubtask(subtask.ID, title)
			if err != nil {
				return nil, err
			}
			subtask.Title = updated.Title
		}
		if hasDone {
			subtask.Done = done
		}
		return *subtask, nil
	})
}

func buildCompleteSubtask(p Params) (Command, error) {
	id, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return editTask(p, func(_ context.Context, _ *Env, task *domain.Task) (any, error) {
		subtask, err := findSubtask(task, id)
		if err != nil {
			return nil, err
		}
		subtask.Done = true
		return *subtask, nil
	})
}

func buildDeleteSubtask(p Params) (Command, error) {
	id, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return editTask(p, func(_ context.Context, _ *Env, task *domain.Task) (any, error) {
		if !task.RemoveSubtask(domain.SubtaskID(id)) {
			return nil, fmt.Errorf("%w: subtask %q on task %q", ErrNotFound, id, task.ID)
		}
		return deleted{ID: id, Deleted: true}, nil
	})
}

func buildAddAttachment(p Params) (Command, error) {
	path, err := p.RequireString("path")
	if err != nil {
		return nil, err
	}
	name, _ := p.String("name")
	mimeType, _ := p.String("mime_type")
	size, _, err := p.Int64("size")
	if err != nil {
		return nil, err
	}
	// The id is assigned at execution; a fixed one stands in while validating.
	draft, err := domain.NewAttachment(domain.AttachmentInput{
		ID:       "pending",
		Name:     name,
		Path:     path,
		MimeType: mimeType,
		Size:     size,
	})
	if err != nil {
		return nil, err
	}
	return editTask(p, func(_ context.Context, env *Env, task *domain.Task) (any, error) {
		attachment := draft
		attachment.ID = domain.AttachmentID(env.NewID())
		task.AddAttachment(attachment)
		return attachment, nil
	})
}

func buildDeleteAttachment(p Params) (Command, error) {
	id, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return editTask(p, func(_ context.Context, _ *Env, task *domain.Task) (any, error) {
		if !task.RemoveAttachment(domain.AttachmentID(id)) {
			return nil, fmt.Errorf("%w: attachment %q on task %q", ErrNotFound, id, task.ID)
		}
		return deleted{ID: id, Deleted: true}, nil
	})
}

func buildListAttachments(p Params) (Command, error) {
	return viewTaskPart(p, func(t domain.Task) any { return t.Attachments })
}

func buildListActivity(p Params) (Command, error) {
	limit, hasLimit, err := p.Int("limit")
	if err != nil {
		return nil, err
	}
	if !hasLimit || limit <= 0 {
		limit = defaultActivityLimit
	}
	taskRef, _ := p.String("task")
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		if taskRef == "" {
			entries, err := env.Store.ReadActivity(ctx, limit)
			if err != nil {
				return Result{}, err
			}
			return Result{Value: entries}, nil
		}
		if !domain.ValidFileID(taskRef) {
			return Result{}, fmt.Errorf("%w: task %q", ErrNotFound, taskRef)
		}
		entries, err := env.Store.ReadEntityLog(ctx, domain.TaskRef(domain.TaskID(taskRef)))
		if err != nil {
			return Result{}, err
		}
		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		return Result{Value: entries}, nil
	}), nil
}
