package port

import (
	"context"

	"github.com/Copium-archive/boardcast/internal/domain/entity"
	"github.com/google/uuid"
)

type ExportJobRepository interface {
	Create(ctx context.Context, job *entity.ExportJob) error
	Update(ctx context.Context, job *entity.ExportJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ExportJob, error)
}
