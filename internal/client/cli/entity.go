package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/iudanet/fieldsync/internal/models"
)

// PutOptions источник payload: аргумент, файл или стандартный ввод ("-")
type PutOptions struct {
	Payload string
	File    string
	Stdin   io.Reader
}

func (o PutOptions) read() (string, error) {
	switch {
	case o.File != "" && o.Payload != "":
		return "", errors.New("payload argument and --file are mutually exclusive")
	case o.File != "":
		return readTrimmedFile(o.File)
	case o.Payload == "-":
		if o.Stdin == nil {
			return "", errors.New("stdin is not available")
		}
		raw, err := io.ReadAll(o.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		return string(raw), nil
	case o.Payload != "":
		return o.Payload, nil
	default:
		return "{}", nil
	}
}

// RunPut создает или обновляет сущность локально и ставит изменение в outbox
func (c *Cli) RunPut(ctx context.Context, entityType, id string, opts PutOptions) error {
	ref, err := parseRef(entityType, id)
	if err != nil {
		return err
	}
	payload, err := opts.read()
	if err != nil {
		return err
	}

	entry, err := c.dataService.Put(ctx, ref, payload)
	if err != nil {
		return err
	}
	c.io.Printf("✓ %s %s queued (outbox #%d, base version %d)\n", entry.Operation, ref, entry.ID, entry.BaseVersion)
	return nil
}

// RunGet показывает локальную копию сущности
func (c *Cli) RunGet(ctx context.Context, entityType, id string) error {
	ref, err := parseRef(entityType, id)
	if err != nil {
		return err
	}
	entity, err := c.dataService.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", ref, err)
	}
	return c.render("entity", entityTemplate, entity)
}

// RunDelete удаляет сущность локально и ставит удаление в outbox
func (c *Cli) RunDelete(ctx context.Context, entityType, id string) error {
	ref, err := parseRef(entityType, id)
	if err != nil {
		return err
	}
	entry, err := c.dataService.Delete(ctx, ref)
	if err != nil {
		return fmt.Errorf("%s: %w", ref, err)
	}
	c.io.Printf("✓ delete %s queued (outbox #%d)\n", ref, entry.ID)
	return nil
}

// RunList выводит сущности; пустой тип - все типы
func (c *Cli) RunList(ctx context.Context, entityType string) error {
	var t models.EntityType
	if entityType != "" {
		parsed, err := models.ParseEntityType(entityType)
		if err != nil {
			return fmt.Errorf("%w (known types: %s)", err, knownTypes())
		}
		t = parsed
	}
	entities, err := c.dataService.List(ctx, t)
	if err != nil {
		return err
	}
	return c.render("entities", entityListTemplate, entities)
}

// RunOutbox выводит неподтвержденные изменения
func (c *Cli) RunOutbox(ctx context.Context) error {
	entries, err := c.dataService.Outbox(ctx)
	if err != nil {
		return err
	}
	return c.render("outbox", outboxTemplate, entries)
}

// RunAttach ставит файл в очередь загрузки для фотографии
func (c *Cli) RunAttach(ctx context.Context, photoID, filePath, contentType string) error {
	ref, err := parseRef(string(models.EntityTypePhoto), photoID)
	if err != nil {
		return err
	}
	upload, err := c.dataService.AttachMedia(ctx, ref, filePath, contentType)
	if err != nil {
		return err
	}
	return c.render("media", mediaTemplate, upload)
}
