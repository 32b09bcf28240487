package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lix-it/prospector/internal/store"
	"github.com/lix-it/prospector/pkg/logging"
	"github.com/lix-it/prospector/pkg/lookc"
	"github.com/lix-it/prospector/pkg/paginate"
)

// DefaultEmployeePageSize is the page size requested from the employee
// listing endpoint.
const DefaultEmployeePageSize = 100

// EmployeeLister is the LookC call the employee collector depends on.
type EmployeeLister interface {
	ListEmployeesPage(ctx context.Context, orgID string, pageSize int, cur paginate.Cursor) (*paginate.Page, error)
}

// EmployeeCollector walks an organisation's full employee list through the
// resumable fetch loop, upserting each employee under (person_id, org_id).
type EmployeeCollector struct {
	client    EmployeeLister
	employees *store.EmployeeRepository
	runState  *store.RunStateRepository
	pageSize  int
	throttle  time.Duration
}

func NewEmployeeCollector(client EmployeeLister, employees *store.EmployeeRepository, runState *store.RunStateRepository) *EmployeeCollector {
	return &EmployeeCollector{
		client:    client,
		employees: employees,
		runState:  runState,
		pageSize:  DefaultEmployeePageSize,
	}
}

// SetPageSize overrides the page size requested per fetch.
func (c *EmployeeCollector) SetPageSize(n int) {
	c.pageSize = n
}

// Run collects all employees of one organisation, resuming from persisted
// state when a previous run stopped partway.
func (c *EmployeeCollector) Run(ctx context.Context, orgID string) (int, error) {
	fetcher := &employeeFetcher{client: c.client, orgID: orgID, pageSize: c.pageSize}
	sink := &employeeSink{repo: c.employees, orgID: orgID}
	state := c.runState.ForParent("employees:" + orgID)

	loop := paginate.NewLoop(fetcher, sink, state, paginate.LinkStrategy{Param: "after"}, paginate.Config{
		Collection: "employees",
		Throttle:   c.throttle,
	}, logging.NewLogger("collector").With().Str("org_id", orgID).Logger())

	return loop.Run(ctx)
}

type employeeFetcher struct {
	client   EmployeeLister
	orgID    string
	pageSize int
}

func (f *employeeFetcher) FetchPage(ctx context.Context, cur paginate.Cursor) (*paginate.Page, error) {
	return f.client.ListEmployeesPage(ctx, f.orgID, f.pageSize, cur)
}

type employeeSink struct {
	repo  *store.EmployeeRepository
	orgID string
}

func (s *employeeSink) SavePage(ctx context.Context, cur paginate.Cursor, page *paginate.Page) error {
	for _, item := range page.Items {
		var emp lookc.Employee
		if err := json.Unmarshal(item, &emp); err != nil {
			return fmt.Errorf("decode employee: %w", err)
		}
		if emp.PersonID == "" {
			return fmt.Errorf("employee record missing person id")
		}

		rec := store.EmployeeRecord{
			PersonID:      emp.PersonID,
			OrgID:         s.orgID,
			Name:          nullString(emp.Name),
			Title:         nullString(emp.Title),
			DateStarted:   nullString(emp.DateStarted),
			DateEnded:     nullString(emp.DateEnded),
			Location:      nullString(emp.Location),
			Image:         nullString(emp.Image),
			LinksLinkedIn: nullString(emp.Links.LinkedIn),
			LinksSalesNav: nullString(emp.Links.SalesNav),
			Data:          string(item),
		}

		// Current employees often omit currentOrg; an open-ended stint at
		// the listed organisation implies it.
		currentOrgID, currentOrgName := emp.CurrentOrg.OrgID, emp.CurrentOrg.Name
		if currentOrgID == "" && emp.DateEnded == "" {
			currentOrgID = s.orgID
		}
		rec.CurrentOrgID = nullString(currentOrgID)
		rec.CurrentOrgName = nullString(currentOrgName)

		if months, ok := emp.TenureAtOrg.TotalMonths(); ok {
			rec.TenureAtOrgMonths = nullInt64(months)
		}
		if months, ok := emp.TenureInRole.TotalMonths(); ok {
			rec.TenureInRoleMonths = nullInt64(months)
		}

		if err := s.repo.Upsert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
