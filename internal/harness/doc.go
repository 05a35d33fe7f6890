// Package harness runs evaluation scenarios against compiled expression
// specs and compares their traces with golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario checks"
//	specs: ../specs/weak          # CUE package directory
//	context: jacobian             # context declared in the spec
//	superset: "{{1},{0,1}}"       # optional expected root superset
//	batches:
//	  - points: 2
//	    fields: { k: [2, 3], u: [1, 4] }
//	    expect:
//	      - deriv: "{1}"
//	        vector: [2, 12]
//	      - deriv: "{0,1}"
//	        constant: false
//	      - deriv: "{0}"
//	        absent: true
//	  - points: 1
//	    expect_error: MISSING_FIELD
//
// Each batch is evaluated in order. An expectation names one derivative of
// the root (in multiset notation) and checks whether it is present, whether
// it is constant, and its value within tol (default 1e-12). A batch with
// expect_error must fail with that batch error code.
//
// # Deterministic Testing
//
// Every scenario runs with:
//   - a deterministic logical clock (testutil.DeterministicClock)
//   - sequential run IDs (testutil.SequentialIDs)
//   - a fresh in-memory SQLite store
//
// Runs are written to the store and the trace is read back from it, so a
// trace reflects exactly what was persisted.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/weak_jacobian.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
