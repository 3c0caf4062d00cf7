package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ed-fi-alliance/ods-admin-api/internal/edorg"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
	"github.com/ed-fi-alliance/ods-admin-api/test-integration/admin-api/helpers"
)

const jobTimeout = 30 * time.Second

func byEdOrgID(orgs []edorg.EducationOrganization) map[int64]edorg.EducationOrganization {
	out := make(map[int64]edorg.EducationOrganization, len(orgs))
	for _, o := range orgs {
		out[o.EducationOrganizationID] = o
	}
	return out
}

var _ = Describe("Education organization refresh", Label("refresh"), func() {
	var (
		server     *helpers.ServerTestHelper
		instanceID int
	)

	BeforeEach(func() {
		Expect(testDB.Reset(ctx)).To(Succeed())

		var err error
		instanceID, err = testDB.RegisterInstance(ctx, "Grand Bend")
		Expect(err).NotTo(HaveOccurred())

		Expect(testDB.AddStateAgency(ctx, 255, "Texas Education Agency")).To(Succeed())
		Expect(testDB.AddLocalAgency(ctx, 255901, "Grand Bend ISD", 255)).To(Succeed())
		Expect(testDB.AddSchool(ctx, 255901001, "Grand Bend High School", 255901)).To(Succeed())
		Expect(testDB.AddSchool(ctx, 255901107, "Grand Bend Elementary School", 255901)).To(Succeed())

		server = helpers.NewServerTestHelper(ctx, testDB)
		Expect(server.StartServer()).To(Succeed())
		server.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(server.StopServer()).To(Succeed())
	})

	It("caches every organization with its effective parent", func() {
		rec := server.WaitForJob(server.Refresh(nil), jobTimeout)
		Expect(rec.Status).To(Equal(status.JobStatusCompleted))
		Expect(rec.ErrorMessage).To(BeNil())

		orgs := byEdOrgID(server.EducationOrganizations(nil))
		Expect(orgs).To(HaveLen(4))

		Expect(orgs[255].ParentID).To(BeNil())
		Expect(orgs[255901].ParentID).To(HaveValue(BeEquivalentTo(255)))
		Expect(orgs[255901001].ParentID).To(HaveValue(BeEquivalentTo(255901)))
		Expect(orgs[255901001].InstanceID).To(Equal(instanceID))
		Expect(orgs[255901001].InstanceName).To(Equal("Grand Bend"))
		Expect(orgs[255901001].Discriminator).To(Equal(edorg.DiscriminatorSchool))
	})

	It("mirrors updates and deletes on the next refresh", func() {
		Expect(server.WaitForJob(server.Refresh(nil), jobTimeout).Status).To(Equal(status.JobStatusCompleted))
		before := byEdOrgID(server.EducationOrganizations(nil))

		Expect(testDB.RenameOrganization(ctx, 255901001, "Grand Bend Senior High")).To(Succeed())
		Expect(testDB.RemoveSchool(ctx, 255901107)).To(Succeed())

		Expect(server.WaitForJob(server.Refresh(&instanceID), jobTimeout).Status).To(Equal(status.JobStatusCompleted))
		after := byEdOrgID(server.EducationOrganizations(&instanceID))

		Expect(after).To(HaveLen(3))
		Expect(after).NotTo(HaveKey(int64(255901107)))
		Expect(after[255901001].NameOfInstitution).To(Equal("Grand Bend Senior High"))
		Expect(after[255901001].ID).To(Equal(before[255901001].ID), "updates keep the row")
		Expect(after[255].LastRefreshed).To(BeTemporally(">=", before[255].LastRefreshed))
	})

	It("keeps refreshing healthy instances when one instance fails", func() {
		_, err := testDB.RegisterBrokenInstance(ctx, "Broken")
		Expect(err).NotTo(HaveOccurred())

		rec := server.WaitForJob(server.Refresh(nil), jobTimeout)
		Expect(rec.Status).To(Equal(status.JobStatusCompleted))
		Expect(server.EducationOrganizations(&instanceID)).To(HaveLen(4))
	})

	It("skips an unknown instance without failing the run", func() {
		missing := instanceID + 100
		rec := server.WaitForJob(server.Refresh(&missing), jobTimeout)
		Expect(rec.Status).To(Equal(status.JobStatusCompleted))
		Expect(server.EducationOrganizations(nil)).To(BeEmpty())
	})

	It("returns 404 for an unknown run id", func() {
		_, code := server.JobStatus("RefreshEducationOrganizationsJob--missing_1")
		Expect(code).To(Equal(http.StatusNotFound))
	})
})

var _ = Describe("Health endpoints", Label("health"), func() {
	var server *helpers.ServerTestHelper

	BeforeEach(func() {
		server = helpers.NewServerTestHelper(ctx, testDB)
		Expect(server.StartServer()).To(Succeed())
		server.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(server.StopServer()).To(Succeed())
	})

	It("reports health and version", func() {
		for _, path := range []string{"/health", "/readiness", "/version"} {
			resp, err := server.Get(path)
			Expect(err).NotTo(HaveOccurred())
			_ = resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK), path)
		}
	})
})
