// Package classifier runs the trained fertilizer classification model.
//
// The model is a random forest exported from its training environment as a
// JSON artifact. Inference reproduces the trained estimator exactly: the same
// feature column order, the same split rule and the same class decoding.
//
// # Artifact format
//
// An artifact with format "random_forest/v1" is produced once from the pickled
// training output, a dict holding the fitted RandomForestClassifier under
// "model" and the target LabelEncoder under "fert_encoder":
//
//	format         "random_forest/v1"
//	feature_names  ["Nitrogen", "Potassium", "Phosphorus"], the training column order
//	classes        model.classes_ as integers
//	label_classes  fert_encoder.classes_, so label_classes[i] is the name of class i
//	trees          one entry per model.estimators_[j].tree_
//
// Each tree copies the fitted node arrays of est.tree_ unchanged:
//
//	children_left   tree_.children_left   (-1 marks a leaf)
//	children_right  tree_.children_right
//	feature         tree_.feature         (index into feature_names)
//	threshold       tree_.threshold
//	value           tree_.value[:, 0, :]  (per-node class weights, one output)
//
// A small export script is enough:
//
//	saved = pickle.load(open("fertilizer_model.pkl", "rb"))
//	model, enc = saved["model"], saved["fert_encoder"]
//	artifact = {
//	    "format": "random_forest/v1",
//	    "feature_names": ["Nitrogen", "Potassium", "Phosphorus"],
//	    "classes": [int(c) for c in model.classes_],
//	    "label_classes": [str(c) for c in enc.classes_],
//	    "trees": [{
//	        "children_left": e.tree_.children_left.tolist(),
//	        "children_right": e.tree_.children_right.tolist(),
//	        "feature": e.tree_.feature.tolist(),
//	        "threshold": e.tree_.threshold.tolist(),
//	        "value": e.tree_.value[:, 0, :].tolist(),
//	    } for e in model.estimators_],
//	}
//	json.dump(artifact, open("fertilizer_model.json", "w"))
//
// Traversal goes left when x[feature] <= threshold, with the feature value
// rounded to float32 as the estimator does. Leaf weights are normalized per tree
// and averaged across trees; the class with the highest mean wins and ties go
// to the lowest index. testdata/forest.json is a small artifact in this format.
package classifier
