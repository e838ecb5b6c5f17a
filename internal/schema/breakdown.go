package schema

// Defaults filled for the whitelisted optional breakdown fields. These two
// are presentation-only, so a placeholder beats rejecting an otherwise
// usable document.
const (
	DefaultOverview           = "No overview provided."
	DefaultTotalEstimatedTime = "unknown"
)

// taskFields are required on every task, flat or nested under a class.
var taskFields = []string{"id", "title", "description", "dependencies", "estimated_time", "concepts"}

func (v *Validator) validateBreakdown(doc map[string]any) error {
	if _, ok := nonEmptyString(doc, "overview"); !ok {
		doc["overview"] = DefaultOverview
	}
	if _, ok := nonEmptyString(doc, "total_estimated_time"); !ok {
		doc["total_estimated_time"] = DefaultTotalEstimatedTime
	}

	rawFiles, present := doc["files"]
	if !present || rawFiles == nil {
		return errf(AssignmentBreakdown, "files", "", "missing required field: files")
	}
	files, ok := rawFiles.([]any)
	if !ok {
		return errf(AssignmentBreakdown, "files", "", "'files' must be a list")
	}
	if len(files) == 0 {
		return errf(AssignmentBreakdown, "files", "", "'files' must be a non-empty list")
	}

	// Task ids are unique across the whole document, not per file or
	// class. The map remembers the first owner for the diagnostic.
	seen := make(map[int64]string)

	for i, rawFile := range files {
		file, ok := rawFile.(map[string]any)
		if !ok {
			return errf(AssignmentBreakdown, "files", "", "file entry %d is not an object", i)
		}
		filename, ok := nonEmptyString(file, "filename")
		if !ok {
			return errf(AssignmentBreakdown, "filename", "", "file entry %d is missing required field: filename", i)
		}
		if _, ok := nonEmptyString(file, "purpose"); !ok {
			return errf(AssignmentBreakdown, "purpose", filename, "file '%s' is missing required field: purpose", filename)
		}

		tasks, ok := asList(file["tasks"])
		if !ok {
			return errf(AssignmentBreakdown, "tasks", filename, "'tasks' in '%s' must be a list", filename)
		}
		classes, ok := asList(file["classes"])
		if !ok {
			return errf(AssignmentBreakdown, "classes", filename, "'classes' in '%s' must be a list", filename)
		}

		hasTasks := len(tasks) > 0
		hasClasses := len(classes) > 0
		switch {
		case hasTasks && hasClasses:
			return errf(AssignmentBreakdown, "tasks", filename, "file '%s' declares both tasks and classes; exactly one is allowed", filename)
		case !hasTasks && !hasClasses:
			return errf(AssignmentBreakdown, "tasks", filename, "file '%s' declares neither tasks nor classes; exactly one is required", filename)
		}

		if hasTasks {
			for _, t := range tasks {
				if err := v.validateTask(t, filename, seen); err != nil {
					return err
				}
			}
			continue
		}

		for j, rawClass := range classes {
			class, ok := rawClass.(map[string]any)
			if !ok {
				return errf(AssignmentBreakdown, "classes", filename, "class entry %d in '%s' is not an object", j, filename)
			}
			className, ok := nonEmptyString(class, "class_name")
			if !ok {
				return errf(AssignmentBreakdown, "class_name", filename, "class entry %d in '%s' is missing required field: class_name", j, filename)
			}
			classTasks, ok := asList(class["tasks"])
			if !ok || len(classTasks) == 0 {
				return errf(AssignmentBreakdown, "tasks", className, "class '%s' in '%s' must declare a non-empty task list", className, filename)
			}
			for _, t := range classTasks {
				if err := v.validateTask(t, filename, seen); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (v *Validator) validateTask(raw any, filename string, seen map[int64]string) error {
	task, ok := raw.(map[string]any)
	if !ok {
		return errf(AssignmentBreakdown, "tasks", filename, "task in '%s' is not an object", filename)
	}
	for _, field := range taskFields {
		if _, present := task[field]; !present {
			return errf(AssignmentBreakdown, field, filename, "task in '%s' is missing required field: %s", filename, field)
		}
	}

	id, ok := asInt(task["id"])
	if !ok {
		return errf(AssignmentBreakdown, "id", filename, "task in '%s' has non-integer id: '%v'", filename, task["id"])
	}
	if first, dup := seen[id]; dup {
		return errf(AssignmentBreakdown, "id", filename, "duplicate task id %d in '%s' (first declared in '%s')", id, filename, first)
	}
	seen[id] = filename

	deps, ok := asList(task["dependencies"])
	if !ok {
		return errf(AssignmentBreakdown, "dependencies", filename, "Task %d in '%s' has non-list dependencies", id, filename)
	}
	// No acyclicity or forward-reference check: a dependency may name a
	// task declared later, or one that never appears. Consumers tolerate
	// dangling edges.
	for _, dep := range deps {
		if _, ok := asInt(dep); !ok {
			return errf(AssignmentBreakdown, "dependencies", filename, "Task %d in '%s' has non-integer dependency: '%v'", id, filename, dep)
		}
	}
	return nil
}
