// Package deployment provides the pure deployment planner.
//
// This package contains the functional core logic for turning the operator's
// configuration into a declarative resource plan. All functions are pure
// (no I/O, no side effects) apart from the random plan ID; the plan is applied
// by an external provisioning engine.
//
// # Functions
//
//   - Plan: Validate a raw configuration and build the plan
//   - Build: Build the plan from validated settings
//   - Naming: Stable logical IDs and ARN expressions (ManagedPolicyARN, InstanceARN)
//
// # Plan Shape
//
// Every plan holds the same resources in the same order: the imported VPC,
// the generated root password secret, the security group, the instance role
// and profile, the Elastic IP, the instance, the EIP association, the
// imported hosted zone, the A record, the scheduler role and the start/stop
// schedules. References between them are explicit domain.Ref values and
// always resolve inside the plan.
//
// # Usage
//
//	plan, err := deployment.Plan(env, cfg)
//	if err != nil {
//	    return err
//	}
//	template, err := render.CloudFormation(plan)
package deployment
