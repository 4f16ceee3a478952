package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PriceSync/app/models"
	"github.com/ManuelReschke/PriceSync/internal/pkg/catalog"
	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/snapshot"
)

// SnapshotStore fetches snapshots by key and archives accepted ones.
type SnapshotStore interface {
	Fetch(ctx context.Context, key string) ([]models.PriceListRow, error)
	Archive(ctx context.Context, rows []models.PriceListRow) (string, error)
}

// PricingController serves catalog sync and price lookups.
type PricingController struct {
	paths     *docstore.Paths
	resolver  *catalog.Resolver
	snapshots SnapshotStore
}

// NewPricingController wires the controller. snapshots may be nil when S3 is
// not configured.
func NewPricingController(paths *docstore.Paths, snapshots SnapshotStore) *PricingController {
	return &PricingController{
		paths:     paths,
		resolver:  catalog.NewResolver(paths),
		snapshots: snapshots,
	}
}

func (pc *PricingController) reconciler() *catalog.Reconciler {
	return catalog.NewReconciler(pc.paths.Active())
}

// HandleSync reconciles the catalog against the snapshot in the request body
// or, with ?s3Key=, against a stored snapshot. ?dryRun=true only previews.
func (pc *PricingController) HandleSync(c *fiber.Ctx) error {
	ctx := c.UserContext()
	dryRun := c.QueryBool("dryRun", false)
	key := strings.TrimSpace(c.Query("s3Key"))

	var (
		rows []models.PriceListRow
		err  error
	)
	if key != "" {
		if pc.snapshots == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "not_configured",
				"message": "S3 snapshots are disabled; set S3_SNAPSHOTS_ENABLED and S3_BUCKET_NAME",
			})
		}
		rows, err = pc.snapshots.Fetch(ctx, key)
	} else {
		rows, err = snapshot.DecodeBytes(c.Body())
	}
	if err != nil {
		return respondError(c, err)
	}

	if dryRun {
		res, err := pc.reconciler().Preview(ctx, rows)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(syncResponse(res, true, ""))
	}

	res, err := pc.reconciler().Reconcile(ctx, rows)
	if err != nil {
		return respondError(c, err)
	}

	archived := ""
	if key == "" && pc.snapshots != nil {
		if archived, err = pc.snapshots.Archive(ctx, rows); err != nil {
			log.Warnf("[Sync] Snapshot archive failed: %v", err)
		}
	}
	return c.Status(fiber.StatusOK).JSON(syncResponse(res, false, archived))
}

func syncResponse(res *catalog.Result, dryRun bool, archived string) fiber.Map {
	cleanup := fiber.Map{"ok": res.Cleanup.OK(), "deleted": res.Cleanup.Deleted}
	if !res.Cleanup.OK() {
		cleanup["error"] = res.Cleanup.Err.Error()
	}
	out := fiber.Map{
		"updatedAt": res.UpdatedAt,
		"count":     res.Count,
		"stale":     res.Stale,
		"cleanup":   cleanup,
		"dryRun":    dryRun,
	}
	if archived != "" {
		out["archivedKey"] = archived
	}
	return out
}

// HandleResolve returns the price for one catalog row.
func (pc *PricingController) HandleResolve(c *fiber.Ctx) error {
	var q catalog.Request
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}
	res, err := pc.resolver.Resolve(c.UserContext(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"price":      res.Price.StringFixed(2),
		"path":       res.Path,
		"documentId": res.DocumentID,
		"row":        res.Row,
	})
}

// HandleMeta reports when the catalog was last reconciled.
func (pc *PricingController) HandleMeta(c *fiber.Ctx) error {
	meta, err := pc.reconciler().Meta(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"updatedAt": meta.UpdatedAt,
		"count":     meta.Count,
		"paths":     pc.paths.String(),
	})
}
