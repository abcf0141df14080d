package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/exportflow_backend/config"
	"bitbucket.org/mmdatafocus/exportflow_backend/models"
	"bitbucket.org/mmdatafocus/exportflow_backend/utils"
	"bitbucket.org/mmdatafocus/exportflow_backend/workflow"
)

func TestMovementConservationAcrossForwardAndRework(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "exportflow_test")
	t.Setenv("STRICT_MOVEMENT_GUARD", "true")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}

	// 1) Sign up the owner and create an organization. Creation seeds the
	// default workflow template and a trial subscription.
	owner, err := models.Signup(ctx, &models.SignupInput{
		Email:    "owner@test.local",
		Name:     "Owner",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, owner.ID)
	ctx = utils.SetUsernameInContext(ctx, owner.Email)

	org, err := models.CreateOrganization(ctx, &models.NewOrganization{
		Name:  "Test Exporter",
		Email: "ops@test.local",
	})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	ctx = utils.SetOrganizationIdInContext(ctx, org.ID.String())

	stages, err := models.ListWorkflowStages(ctx)
	if err != nil {
		t.Fatalf("ListWorkflowStages: %v", err)
	}
	procurement := stageByName(t, stages, "Procurement")
	processing := stageByName(t, stages, "Processing")
	completed := stageByName(t, stages, "Completed")
	if len(processing.SubStages) != 2 {
		t.Fatalf("expected Processing to have 2 sub-stages; got %d", len(processing.SubStages))
	}
	sorting := processing.SubStages[0]
	grading := processing.SubStages[1]
	if completed.IsTerminal == nil || !*completed.IsTerminal {
		t.Fatalf("expected Completed to be terminal")
	}
	packaging := stageByName(t, stages, "Packaging")
	if packaging.IsPackaging == nil || !*packaging.IsPackaging {
		t.Fatalf("expected the seeded Packaging stage to carry the packaging flag")
	}

	// 2) Order with one item of 100 units.
	order, err := models.CreateExportOrder(ctx, &models.NewExportOrder{
		OrderNumber: "EO-0001",
		BuyerName:   "Acme Imports",
	})
	if err != nil {
		t.Fatalf("CreateExportOrder: %v", err)
	}
	item, err := models.CreateItem(ctx, &models.NewItem{
		OrderId:       order.ID,
		Sku:           "TSHIRT-RED-M",
		Name:          "Red T-Shirt (M)",
		TotalQuantity: 100,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	// 3) Draw 60 from the new pool; the item enters at the first position.
	res, err := workflow.MoveForward(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 60},
	}, nil)
	if err != nil {
		t.Fatalf("MoveForward(pool): %v", err)
	}
	mustSucceed(t, res, 1)
	if res.Succeeded[0].To.StageId != procurement.ID || res.Succeeded[0].To.SubStageId != nil {
		t.Fatalf("expected first hop to land on Procurement; got %+v", res.Succeeded[0].To)
	}
	fresh, err := models.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if fresh.Status != models.ItemStatusInProgress {
		t.Fatalf("expected item status InProgress after first hop; got %s", fresh.Status)
	}

	// 4) Advance all 60 out of Procurement; the sub-staged stage is entered
	// at its first sub-stage.
	from := &workflow.Position{StageId: procurement.ID}
	res, err = workflow.MoveForward(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 60, Source: from},
	}, nil)
	if err != nil {
		t.Fatalf("MoveForward(procurement): %v", err)
	}
	mustSucceed(t, res, 1)
	to := res.Succeeded[0].To
	if to.StageId != processing.ID || to.SubStageId == nil || *to.SubStageId != sorting.ID {
		t.Fatalf("expected Processing/Sorting; got %+v", to)
	}

	// 5) Split the batch: 25 of 60 advance Sorting -> Grading.
	fromSorting := &workflow.Position{StageId: processing.ID, SubStageId: &sorting.ID}
	res, err = workflow.MoveForward(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 25, Source: fromSorting},
	}, nil)
	if err != nil {
		t.Fatalf("MoveForward(sorting): %v", err)
	}
	mustSucceed(t, res, 1)

	// 6) Rework 10 from Grading all the way back to Procurement.
	fromGrading := &workflow.Position{StageId: processing.ID, SubStageId: &grading.ID}
	res, err = workflow.MoveToRework(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 10, Source: fromGrading},
	}, procurement.ID, nil, "Loose stitching")
	if err != nil {
		t.Fatalf("MoveToRework: %v", err)
	}
	mustSucceed(t, res, 1)

	// 7) Rework may not target the terminal stage; quantity parked there would
	// never count toward completion.
	if _, err := workflow.MoveToRework(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 1, Source: fromSorting},
	}, completed.ID, nil, "Loose stitching"); !errors.Is(err, workflow.ErrInvalidReworkTarget) {
		t.Fatalf("rework to terminal stage: got %v, want ErrInvalidReworkTarget", err)
	}

	// 8) Over-drawing a position fails that item without touching the ledger.
	res, err = workflow.MoveForward(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 50, Source: fromSorting},
	}, nil)
	if err != nil {
		t.Fatalf("MoveForward(overdraw): %v", err)
	}
	if len(res.Succeeded) != 0 || len(res.Failed) != 1 {
		t.Fatalf("expected overdraw to fail; got %+v", res)
	}
	if res.Failed[0].Reason != "InsufficientQuantity" {
		t.Fatalf("expected InsufficientQuantity; got %s", res.Failed[0].Reason)
	}

	// Ledger: Procurement=10, Sorting=35, Grading=15; pool=40; remaining=100.
	assertAllocations(t, ctx, item.ID, map[string]int{
		key(procurement.ID, nil):        10,
		key(processing.ID, &sorting.ID): 35,
		key(processing.ID, &grading.ID): 15,
	})
	fresh, err = models.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if fresh.RemainingQuantity != 100 {
		t.Fatalf("rework/forward must not change remaining quantity; got %d", fresh.RemainingQuantity)
	}

	// 9) A request naming an unknown item fails as ItemNotFound; a lookup
	// failure is never mistaken for a ledger problem.
	res, err = workflow.MoveForward(ctx, []workflow.MovementRequest{
		{ItemId: item.ID + 100000, Quantity: 1},
	}, nil)
	if err != nil {
		t.Fatalf("MoveForward(unknown item): %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].Reason != "ItemNotFound" {
		t.Fatalf("expected ItemNotFound; got %+v", res)
	}

	// 10) Explicit target jump: 5 from Grading straight to the terminal stage.
	terminal := &workflow.Position{StageId: completed.ID}
	res, err = workflow.MoveForward(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 5, Source: fromGrading},
	}, terminal)
	if err != nil {
		t.Fatalf("MoveForward(terminal): %v", err)
	}
	mustSucceed(t, res, 1)
	if res.Succeeded[0].IsCompleted {
		t.Fatalf("expected item not yet completed at 5/100")
	}
	fresh, err = models.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if fresh.RemainingQuantity != 95 {
		t.Fatalf("expected remaining=95 after 5 reached terminal; got %d", fresh.RemainingQuantity)
	}
	if fresh.Status != models.ItemStatusInProgress {
		t.Fatalf("expected item still InProgress; got %s", fresh.Status)
	}

	// 11) Quantity parked on the terminal stage has nowhere to go.
	fromCompleted := &workflow.Position{StageId: completed.ID}
	res, err = workflow.MoveForward(ctx, []workflow.MovementRequest{
		{ItemId: item.ID, Quantity: 5, Source: fromCompleted},
	}, nil)
	if err != nil {
		t.Fatalf("MoveForward(past end): %v", err)
	}
	if len(res.Failed) != 1 || res.Failed[0].Reason != "EndOfWorkflow" {
		t.Fatalf("expected EndOfWorkflow; got %+v", res)
	}

	// 12) History: five movements recorded, failures leave no trace, and only
	// the rework hop carries a reason.
	entries, err := models.ListItemMovements(ctx, item.ID)
	if err != nil {
		t.Fatalf("ListItemMovements: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 history entries; got %d", len(entries))
	}
	reworkCount := 0
	for _, entry := range entries {
		if entry.MovedBy != owner.ID {
			t.Fatalf("expected MovedBy=%d; got %d", owner.ID, entry.MovedBy)
		}
		if entry.ReworkReason != nil {
			reworkCount++
			if *entry.ReworkReason != "Loose stitching" {
				t.Fatalf("unexpected rework reason %q", *entry.ReworkReason)
			}
		}
	}
	if reworkCount != 1 {
		t.Fatalf("expected exactly 1 rework entry; got %d", reworkCount)
	}

	// 13) Conservation: allocated + new pool always equals the total.
	allocations, err := models.ListItemAllocations(ctx, item.ID)
	if err != nil {
		t.Fatalf("ListItemAllocations: %v", err)
	}
	allocated := 0
	for _, a := range allocations {
		allocated += a.Quantity
	}
	if allocated != 60 {
		t.Fatalf("expected 60 allocated units; got %d", allocated)
	}
}

func key(stageId int, subStageId *int) string {
	if subStageId == nil {
		return fmt.Sprintf("%d", stageId)
	}
	return fmt.Sprintf("%d/%d", stageId, *subStageId)
}

func stageByName(t *testing.T, stages []*models.WorkflowStage, name string) *models.WorkflowStage {
	t.Helper()
	for _, s := range stages {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("stage %q not found in seeded workflow", name)
	return nil
}

func mustSucceed(t *testing.T, res *workflow.MovementResult, n int) {
	t.Helper()
	if len(res.Failed) != 0 {
		t.Fatalf("unexpected failures: %+v", res.Failed)
	}
	if len(res.Succeeded) != n {
		t.Fatalf("expected %d successes; got %d", n, len(res.Succeeded))
	}
}

func assertAllocations(t *testing.T, ctx context.Context, itemId int, want map[string]int) {
	t.Helper()
	allocations, err := models.ListItemAllocations(ctx, itemId)
	if err != nil {
		t.Fatalf("ListItemAllocations: %v", err)
	}
	got := map[string]int{}
	for _, a := range allocations {
		if a.Quantity == 0 {
			continue
		}
		got[key(a.StageId, a.SubStageId)] = a.Quantity
	}
	if len(got) != len(want) {
		t.Fatalf("allocation mismatch: want %v got %v", want, got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("allocation mismatch at %s: want %d got %d", k, v, got[k])
		}
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("exportflow-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("exportflow-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=exportflow_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
