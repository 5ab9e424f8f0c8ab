package store

// DemoFixtures is a small multi-region data set for local runs and tests.
// Consultant user IDs equal their consultant IDs.
func DemoFixtures() Fixtures {
	return Fixtures{
		Regions: []Region{
			{ID: "r1", Name: "London"},
			{ID: "r2", Name: "Manchester"},
			{ID: "r3", Name: "Sydney"},
		},
		Companies: []Company{
			{ID: "co1", Name: "Acme Corp", RegionID: "r1", Industry: "software"},
			{ID: "co2", Name: "Globex", RegionID: "r2", Industry: "logistics"},
			{ID: "co3", Name: "Initech", RegionID: "r3", Industry: "finance"},
		},
		Users: []User{
			{ID: "u-co1-admin", Email: "ada@acme.test", Name: "Ada Admin", CompanyID: "co1"},
			{ID: "u-co1-user", Email: "uma@acme.test", Name: "Uma User", CompanyID: "co1"},
			{ID: "u-global", Email: "grace@hrm8.test", Name: "Grace Global"},
			{ID: "u-regional", Email: "rita@hrm8.test", Name: "Rita Regional"},
		},
		Consultants: []Consultant{
			{ID: "c1", Email: "casey@hrm8.test", FirstName: "Casey", LastName: "Cole", RegionID: "r1"},
			{ID: "c2", Email: "dana@hrm8.test", FirstName: "Dana", LastName: "Diaz", RegionID: "r1"},
			{ID: "c3", Email: "eli@hrm8.test", FirstName: "Eli", LastName: "Ng", RegionID: "r2"},
			{ID: "c4", Email: "fay@hrm8.test", FirstName: "Fay", LastName: "Oh", RegionID: "r3", Status: "INACTIVE"},
		},
		Jobs: []Job{
			{ID: "j1", Title: "Backend Engineer", Status: "OPEN", CompanyID: "co1", RegionID: "r1", AssignedConsultantID: "c1", Salary: 90000},
			{ID: "j2", Title: "Product Manager", Status: "OPEN", CompanyID: "co1", RegionID: "r1", AssignedConsultantID: "c2", Salary: 85000},
			{ID: "j3", Title: "Data Analyst", Status: "CLOSED", CompanyID: "co2", RegionID: "r2", AssignedConsultantID: "c3", Salary: 70000},
			{ID: "j4", Title: "Designer", Status: "OPEN", CompanyID: "co3", RegionID: "r3", AssignedConsultantID: "c4", Salary: 65000},
			{ID: "j5", Title: "QA Lead", Status: "FILLED", CompanyID: "co1", RegionID: "r1", AssignedConsultantID: "c1", Salary: 75000},
		},
		Applications: []Application{
			{ID: "a1", JobID: "j1", CandidateName: "Sam Smith", Stage: "INTERVIEW", CompanyID: "co1", RegionID: "r1", AssignedConsultantID: "c1"},
			{ID: "a2", JobID: "j1", CandidateName: "Lee Park", Stage: "OFFER", CompanyID: "co1", RegionID: "r1", AssignedConsultantID: "c1", OfferAmount: 92000},
			{ID: "a3", JobID: "j2", CandidateName: "Kim Lo", Stage: "SCREENING", CompanyID: "co1", RegionID: "r1", AssignedConsultantID: "c2"},
			{ID: "a4", JobID: "j3", CandidateName: "Pat Roe", Stage: "HIRED", CompanyID: "co2", RegionID: "r2", AssignedConsultantID: "c3", OfferAmount: 71000},
			{ID: "a5", JobID: "j4", CandidateName: "Jo Kay", Stage: "SCREENING", CompanyID: "co3", RegionID: "r3", AssignedConsultantID: "c4"},
		},
		Commissions: []Commission{
			{ID: "cm1", ConsultantID: "c1", JobID: "j5", CompanyID: "co1", RegionID: "r1", Status: "PAID", Amount: 7500},
			{ID: "cm2", ConsultantID: "c2", JobID: "j2", CompanyID: "co1", RegionID: "r1", Status: "PENDING", Amount: 4200},
			{ID: "cm3", ConsultantID: "c3", JobID: "j3", CompanyID: "co2", RegionID: "r2", Status: "PAID", Amount: 7000},
			{ID: "cm4", ConsultantID: "c1", JobID: "j1", CompanyID: "co1", RegionID: "r1", Status: "PENDING", Amount: 9000},
		},
		Leads: []Lead{
			{ID: "l1", CompanyName: "Hooli", Status: "NEW", RegionID: "r1", ConsultantID: "c1", Value: 20000},
			{ID: "l2", CompanyName: "Umbrella", Status: "QUALIFIED", RegionID: "r1", ConsultantID: "c2", Value: 35000},
			{ID: "l3", CompanyName: "Stark Industries", Status: "NEW", RegionID: "r2", ConsultantID: "c3", Value: 50000},
		},
	}
}
