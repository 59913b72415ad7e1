package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/kanfile/internal/domain"
)

// resolveActor finds an actor by id or case-insensitive name.
func resolveActor(ctx context.Context, st Store, ref string) (domain.Actor, error) {
	ref = strings.TrimSpace(ref)
	if domain.ValidFileID(ref) {
		actor, err := st.ReadActor(ctx, domain.ActorID(ref))
		if err == nil {
			return actor, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	actors, err := st.ListActors(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range actors {
		if strings.EqualFold(a.ActorName(), ref) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: actor %q", ErrNotFound, ref)
}

// resolveActorIDs resolves every reference to an existing actor id.
func resolveActorIDs(ctx context.Context, st Store, refs []domain.ActorID) ([]domain.ActorID, error) {
	out := make([]domain.ActorID, 0, len(refs))
	for _, ref := range refs {
		actor, err := resolveActor(ctx, st, string(ref))
		if err != nil {
			return nil, err
		}
		out = append(out, actor.ActorID())
	}
	return out, nil
}

// callerActorID maps the acting caller to a registered actor id when one
// matches, and otherwise keeps the caller string as given.
func callerActorID(ctx context.Context, env *Env) (domain.ActorID, error) {
	caller := actorOf(env)
	if caller == "" {
		return "", nil
	}
	actor, err := resolveActor(ctx, env.Store, caller)
	if errors.Is(err, ErrNotFound) {
		return domain.ActorID(caller), nil
	}
	if err != nil {
		return "", err
	}
	return actor.ActorID(), nil
}

func buildAddActor(p Params) (Command, error) {
	name, err := p.RequireString("name")
	if err != nil {
		return nil, err
	}
	kindRaw, _ := p.String("kind")
	kind, err := domain.NormalizeActorKind(domain.ActorKind(kindRaw))
	if err != nil {
		return nil, err
	}
	id, _ := p.String("id")
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		actorID := domain.ActorID(id)
		if actorID == "" {
			actorID = domain.ActorID(env.NewID())
		} else if _, err := env.Store.ReadActor(ctx, actorID); err == nil {
			return Result{}, fmt.Errorf("%w: actor %q", domain.ErrDuplicateID, actorID)
		}
		actors, err := env.Store.ListActors(ctx)
		if err != nil {
			return Result{}, err
		}
		for _, a := range actors {
			if strings.EqualFold(a.ActorName(), name) {
				return Result{}, fmt.Errorf("%w: actor named %q already exists", ErrConflict, name)
			}
		}
		actor, err := domain.NewActor(kind, actorID, name)
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteActor(ctx, actor); err != nil {
			return Result{}, err
		}
		return Result{
			Value:    domain.RecordOf(actor),
			Affected: []domain.EntityRef{domain.ActorRef(actor.ActorID())},
		}, nil
	}), nil
}

func buildGetActor(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		actor, err := resolveActor(ctx, env.Store, ref)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: domain.RecordOf(actor)}, nil
	}), nil
}

func buildUpdateActor(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	name, err := p.RequireString("name")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		actor, err := resolveActor(ctx, env.Store, ref)
		if err != nil {
			return Result{}, err
		}
		renamed, err := domain.RenameActor(actor, name)
		if err != nil {
			return Result{}, err
		}
		if err := env.Store.WriteActor(ctx, renamed); err != nil {
			return Result{}, err
		}
		return Result{
			Value:    domain.RecordOf(renamed),
			Affected: []domain.EntityRef{domain.ActorRef(renamed.ActorID())},
		}, nil
	}), nil
}

func buildDeleteActor(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		actor, err := resolveActor(ctx, env.Store, ref)
		if err != nil {
			return Result{}, err
		}
		id := actor.ActorID()
		affected := []domain.EntityRef{domain.ActorRef(id)}

		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		for _, task := range tasks {
			if !task.RemoveAssignees(id) {
				continue
			}
			if err := env.Store.WriteTask(ctx, task); err != nil {
				return Result{}, err
			}
			affected = append(affected, domain.TaskRef(task.ID))
		}
		if err := env.Store.DeleteActor(ctx, id); err != nil {
			return Result{}, err
		}
		return Result{Value: deleted{ID: string(id), Deleted: true}, Affected: affected}, nil
	}), nil
}

func buildListActors(p Params) (Command, error) {
	kindRaw, hasKind := p.String("kind")
	var kind domain.ActorKind
	if hasKind {
		var err error
		if kind, err = domain.NormalizeActorKind(domain.ActorKind(kindRaw)); err != nil {
			return nil, err
		}
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		actors, err := env.Store.ListActors(ctx)
		if err != nil {
			return Result{}, err
		}
		out := make([]domain.ActorRecord, 0, len(actors))
		for _, a := range actors {
			if hasKind && a.Kind() != kind {
				continue
			}
			out = append(out, domain.RecordOf(a))
		}
		slices.SortFunc(out, func(a, b domain.ActorRecord) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
		return Result{Value: out}, nil
	}), nil
}

// resolveTag finds a tag by id, slugified id, or case-insensitive name.
func resolveTag(ctx context.Context, st Store, ref string) (domain.Tag, error) {
	ref = strings.TrimSpace(ref)
	for _, candidate := range []string{ref, domain.Slugify(ref)} {
		if !domain.ValidFileID(candidate) {
			continue
		}
		tag, err := st.ReadTag(ctx, domain.TagID(candidate))
		if err == nil {
			return tag, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return domain.Tag{}, err
		}
	}
	tags, err := st.ListTags(ctx)
	if err != nil {
		return domain.Tag{}, err
	}
	for _, t := range tags {
		if strings.EqualFold(t.Name, ref) {
			return t, nil
		}
	}
	return domain.Tag{}, fmt.Errorf("%w: tag %q", ErrNotFound, ref)
}

// ensureTags resolves tag references, creating missing tags from their names.
// Created tags are reported as affected entities.
func ensureTags(ctx context.Context, st Store, refs []domain.TagID) ([]domain.TagID, []domain.EntityRef, error) {
	ids := make([]domain.TagID, 0, len(refs))
	var created []domain.EntityRef
	for _, ref := range refs {
		tag, err := resolveTag(ctx, st, string(ref))
		if errors.Is(err, ErrNotFound) {
			tag, err = domain.NewTag("", string(ref), "")
			if err != nil {
				return nil, nil, err
			}
			if err := st.WriteTag(ctx, tag); err != nil {
				return nil, nil, err
			}
			created = append(created, domain.TagRef(tag.ID))
		} else if err != nil {
			return nil, nil, err
		}
		ids = append(ids, tag.ID)
	}
	return ids, created, nil
}

func buildAddTag(p Params) (Command, error) {
	name, err := p.RequireString("name")
	if err != nil {
		return nil, err
	}
	id, _ := p.String("id")
	color, _ := p.String("color")
	tag, err := domain.NewTag(id, name, color)
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		_, err := env.Store.ReadTag(ctx, tag.ID)
		if err == nil {
			return Result{}, fmt.Errorf("%w: tag %q", domain.ErrDuplicateID, tag.ID)
		}
		if !errors.Is(err, ErrNotFound) {
			return Result{}, err
		}
		if err := env.Store.WriteTag(ctx, tag); err != nil {
			return Result{}, err
		}
		return Result{Value: tag, Affected: []domain.EntityRef{domain.TagRef(tag.ID)}}, nil
	}), nil
}

func buildGetTag(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		tag, err := resolveTag(ctx, env.Store, ref)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: tag}, nil
	}), nil
}

func buildUpdateTag(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	name, hasName, err := p.Text("name", domain.ErrInvalidName)
	if err != nil {
		return nil, err
	}
	color, hasColor := p.String("color")
	if !hasName && !hasColor {
		return nil, fmt.Errorf("%w: nothing to update; provide name or color", ErrValidation)
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		tag, err := resolveTag(ctx, env.Store, ref)
		if err != nil {
			return Result{}, err
		}
		if hasName {
			tag.Name = name
		}
		if hasColor {
			tag.Color = color
		}
		if err := env.Store.WriteTag(ctx, tag); err != nil {
			return Result{}, err
		}
		return Result{Value: tag, Affected: []domain.EntityRef{domain.TagRef(tag.ID)}}, nil
	}), nil
}

func buildDeleteTag(p Params) (Command, error) {
	ref, err := p.RequireString("id")
	if err != nil {
		return nil, err
	}
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		tag, err := resolveTag(ctx, env.Store, ref)
		if err != nil {
			return Result{}, err
		}
		affected := []domain.EntityRef{domain.TagRef(tag.ID)}
		tasks, err := env.Store.ListTasks(ctx)
		if err != nil {
			return Result{}, err
		}
		for _, task := range tasks {
			if !task.RemoveTags(tag.ID) {
				continue
			}
			if err := env.Store.WriteTask(ctx, task); err != nil {
				return Result{}, err
			}
			affected = append(affected, domain.TaskRef(task.ID))
		}
		if err := env.Store.DeleteTag(ctx, tag.ID); err != nil {
			return Result{}, err
		}
		return Result{Value: deleted{ID: string(tag.ID), Deleted: true}, Affected: affected}, nil
	}), nil
}

func buildListTags(Params) (Command, error) {
	return commandFunc(func(ctx context.Context, env *Env) (Result, error) {
		tags, err := env.Store.ListTags(ctx)
		if err != nil {
			return Result{}, err
		}
		slices.SortFunc(tags, func(a, b domain.Tag) int { return strings.Compare(string(a.ID), string(b.ID)) })
		if tags == nil {
			tags = []domain.Tag{}
		}
		return Result{Value: tags}, nil
	}), nil
}
