// Command specsync reconciles SDD spec projects with Azure DevOps:
// it correlates internally tracked project structures against spec
// projects, pushes eligible requirements and tasks as backlog items, and
// provisions new Azure DevOps projects with teams, iterations and areas.
package main

func main() {
	Execute()
}
